package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/statestream"
	"github.com/roach88/embarcadero/internal/store"
)

// SnapshotFunc reads an immutable snapshot from the store. It runs with the
// store lock held.
type SnapshotFunc[T any] func(ctx context.Context, s *store.Store) (T, error)

// LiveQuery keeps a snapshot current: it holds a datastore reference, and
// re-runs its snapshot function after every sync, publishing each result.
//
// Snapshots run on one executor goroutine. Syncs that arrive while a
// snapshot is running collapse into a single re-run.
type LiveQuery[T any] struct {
	handle *refcount.Handle[*store.Locked]
	ds     *store.Locked
	fn     SnapshotFunc[T]
	logger *slog.Logger

	data   *statestream.Stream[T]
	errs   *statestream.Stream[error]
	loaded chan struct{}

	signal chan struct{} // buffered, size 1
	remove func()
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// NewLiveQuery acquires a datastore reference and schedules the first
// snapshot.
func NewLiveQuery[T any](ctx context.Context, handle *refcount.Handle[*store.Locked], fn SnapshotFunc[T], logger *slog.Logger) (*LiveQuery[T], error) {
	if logger == nil {
		logger = slog.Default()
	}
	ds, err := handle.Acquire()
	if err != nil {
		return nil, fmt.Errorf("live query: %w", err)
	}

	var zero T
	ctx, cancel := context.WithCancel(ctx)
	q := &LiveQuery[T]{
		handle: handle,
		ds:     ds,
		fn:     fn,
		logger: logger,
		data:   statestream.New(zero),
		errs:   statestream.New[error](nil),
		loaded: make(chan struct{}),
		signal: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	q.remove = ds.AddSyncListener(q.Refresh)
	q.Refresh()

	go q.run(ctx)
	return q, nil
}

// Data returns the snapshot stream. Its initial value is T's zero value;
// use Loaded to wait for the first real snapshot.
func (q *LiveQuery[T]) Data() *statestream.Stream[T] { return q.data }

// Errors returns the stream of snapshot errors. A successful snapshot
// publishes nil.
func (q *LiveQuery[T]) Errors() *statestream.Stream[error] { return q.errs }

// Loaded is closed once the first snapshot attempt has completed.
func (q *LiveQuery[T]) Loaded() <-chan struct{} { return q.loaded }

// Refresh schedules a re-run of the snapshot.
func (q *LiveQuery[T]) Refresh() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *LiveQuery[T]) run(ctx context.Context) {
	defer close(q.done)
	first := true
	for {
		select {
		case <-ctx.Done():
			if first {
				close(q.loaded)
			}
			return
		case <-q.signal:
		}

		q.ds.Lock()
		v, err := q.fn(ctx, q.ds.Store())
		q.ds.Unlock()

		if err != nil {
			if ctx.Err() == nil {
				q.logger.Warn("live query failed", "error", err)
			}
			q.errs.Update(err)
		} else {
			q.data.Update(v)
			q.errs.Update(nil)
		}
		if first {
			first = false
			close(q.loaded)
		}
	}
}

// Close stops the executor and releases the datastore reference.
func (q *LiveQuery[T]) Close() error {
	var err error
	q.closeOnce.Do(func() {
		q.remove()
		q.cancel()
		<-q.done
		err = q.handle.Release(q.ds)
	})
	return err
}

// PathList returns a live list of every path ordered by start time.
func (c *Controller) PathList(ctx context.Context) (*LiveQuery[[]ListItem], error) {
	return NewLiveQuery[[]ListItem](ctx, c.handle, QueryPathList, c.logger)
}

// PathCoords returns live coordinates of one path.
func (c *Controller) PathCoords(ctx context.Context, recordID string) (*LiveQuery[[]location.Sample], error) {
	return NewLiveQuery[[]location.Sample](ctx, c.handle, func(ctx context.Context, s *store.Store) ([]location.Sample, error) {
		return QueryPathCoords(ctx, s, recordID)
	}, c.logger)
}
