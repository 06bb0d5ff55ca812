// Package recording drives path recordings.
//
// A Controller runs at most one recording at a time. Each recording is a
// dedicated worker goroutine that holds a reference on the shared datastore
// handle, creates a path record, and appends every location sample it pulls
// from a location.Queue until asked to stop:
//
//	StartRecording -> acquire handle -> insert record + sync -> enable producer
//	  -> loop { Take -> append under lock -> sync } -> disable producer
//	  -> stamp stop time + sync -> release handle
//
// StopRecording sets the worker's stop flag and cancels its wait. It does
// not wait for the worker; use Wait for that.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/statestream"
	"github.com/roach88/embarcadero/internal/store"
)

// State is the observable recording state. RecordID is empty until the
// new path record has been committed.
type State struct {
	Recording bool   `json:"recording"`
	RecordID  string `json:"record_id,omitempty"`
}

// Controller coordinates recordings against a shared datastore handle.
type Controller struct {
	handle  *refcount.Handle[*store.Locked]
	clock   Clock
	logger  *slog.Logger
	onFatal func(error)
	ioCtx   context.Context

	state *statestream.Stream[State]

	mu     sync.Mutex
	active *worker

	wg       sync.WaitGroup
	errMu    sync.Mutex
	firstErr error
}

// worker is one recording goroutine's control block.
type worker struct {
	stop   atomic.Bool
	cancel context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for start and stop times.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithFatalHandler sets a callback for fatal worker errors. It runs on the
// worker goroutine after the error has been logged.
func WithFatalHandler(fn func(error)) Option {
	return func(ctl *Controller) { ctl.onFatal = fn }
}

// WithContext sets the parent context of every worker. Cancelling it
// without a stop request is treated as an unexpected interruption.
func WithContext(ctx context.Context) Option {
	return func(ctl *Controller) { ctl.ioCtx = ctx }
}

// NewController creates an idle controller.
func NewController(handle *refcount.Handle[*store.Locked], opts ...Option) *Controller {
	c := &Controller{
		handle: handle,
		clock:  SystemClock{},
		logger: slog.Default(),
		ioCtx:  context.Background(),
		state:  statestream.New(State{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the recording state stream.
func (c *Controller) State() *statestream.Stream[State] {
	return c.state
}

// Recording reports whether a recording is active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// StartRecording starts a worker recording samples from src and returns
// immediately. It fails with ErrAlreadyRecording, and changes nothing, while
// a recording is active.
func (c *Controller) StartRecording(src location.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrAlreadyRecording
	}

	c.state.Update(State{Recording: true})

	ctx, cancel := context.WithCancel(c.ioCtx)
	w := &worker{cancel: cancel}
	c.active = w

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		if err := refcount.With(c.handle, func(ds *store.Locked) error {
			return c.record(ctx, w, ds, src)
		}); err != nil {
			c.fail(err)
		}
	}()
	return nil
}

// StopRecording asks the active worker to finish. It returns without
// waiting; the worker stamps the stop time on its way out.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ErrNotRecording
	}
	c.active.stop.Store(true)
	c.state.Update(State{})
	c.active.cancel()
	c.active = nil
	return nil
}

// Wait blocks until every worker started so far has exited, or ctx is done.
// It returns the first fatal worker error, if any.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.firstErr
}

func (c *Controller) fail(err error) {
	c.errMu.Lock()
	if c.firstErr == nil {
		c.firstErr = err
	}
	c.errMu.Unlock()

	c.logger.Error("recording failed", "error", err)
	if c.onFatal != nil {
		c.onFatal(err)
	}
}

// publishRecordID reports the committed record unless a stop already
// reset the state.
func (c *Controller) publishRecordID(w *worker, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !w.stop.Load() {
		c.state.Update(State{Recording: true, RecordID: id})
	}
}

// commit runs mutate and syncs, holding the datastore lock across both.
// mutate returns the record it wrote; commit returns false when that record
// was deleted remotely. Deletions of other records do not count.
func (c *Controller) commit(ds *store.Locked, mutate func() (*store.Record, error)) (bool, error) {
	ds.Lock()
	defer ds.Unlock()

	rec, err := mutate()
	if err != nil {
		return false, err
	}
	alive, err := ds.SyncQuietly(c.ioCtx, rec)
	if err != nil {
		return false, fmt.Errorf("sync: %w", err)
	}
	return alive, nil
}

// record is the worker body. It runs while holding a handle reference.
func (c *Controller) record(ctx context.Context, w *worker, ds *store.Locked, src location.Source) error {
	paths := ds.Store().Table(PathsTable)
	queue := location.NewQueue(src)
	last, hasLast := src.LastKnown()

	var writer *PathWriter
	alive, err := c.commit(ds, func() (*store.Record, error) {
		rec, err := paths.Insert()
		if err != nil {
			return nil, err
		}
		writer = NewPathWriter(rec)
		writer.SetStartTime(c.clock.NowMillis())

		// Start the path at the current fix when one is known.
		if hasLast {
			return rec, writer.AddSample(last)
		}
		return rec, nil
	})
	if err != nil {
		return fmt.Errorf("create path: %w", err)
	}
	if !alive {
		c.logger.Warn("path deleted before recording began", "record", writer.RecordID())
		return nil
	}

	logger := c.logger.With("record", writer.RecordID())
	logger.Info("recording started", "seeded", hasLast)
	c.publishRecordID(w, writer.RecordID())

	if err := queue.EnableProducer(); err != nil {
		return fmt.Errorf("enable location updates: %w", err)
	}
	defer queue.DisableProducer()

	samples := 0
	for {
		s, err := queue.Take(ctx)
		if err != nil {
			if w.stop.Load() {
				break
			}
			return fmt.Errorf("%w: %v", ErrUnexpectedInterrupt, err)
		}

		alive, err := c.commit(ds, func() (*store.Record, error) {
			return writer.Record(), writer.AddSample(s)
		})
		if err != nil {
			return fmt.Errorf("append sample: %w", err)
		}
		if !alive {
			logger.Warn("path deleted remotely, ending recording")
			break
		}
		samples++
		logger.Debug("sample recorded", "sample", s.String())
	}

	queue.DisableProducer()

	// Best effort: the path may already be gone.
	if _, err := c.commit(ds, func() (*store.Record, error) {
		writer.SetStopTime(c.clock.NowMillis())
		return writer.Record(), nil
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("finish path: %w", err)
	}
	logger.Info("recording stopped", "samples", samples)
	return nil
}
