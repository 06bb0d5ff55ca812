package recording

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/statestream"
	"github.com/roach88/embarcadero/internal/store"
	"github.com/roach88/embarcadero/internal/testutil"
)

const (
	testTimeout = 2 * time.Second
	testPoll    = 5 * time.Millisecond
)

// newTestHandle returns a handle over a fresh database file whose records
// get the given ids in order.
func newTestHandle(t *testing.T, ids ...string) *refcount.Handle[*store.Locked] {
	t.Helper()
	return openTestHandle(t, filepath.Join(t.TempDir(), "paths.db"), nil, ids...)
}

// openTestHandle is newTestHandle over the database file at path, with
// options for the locked store.
func openTestHandle(t *testing.T, path string, lopts []store.LockedOption, ids ...string) *refcount.Handle[*store.Locked] {
	t.Helper()
	gen := store.NewFixedGenerator(ids...)

	h := refcount.New(
		func() (*store.Locked, error) {
			s, err := store.Open(path, store.WithIDGenerator(gen))
			if err != nil {
				return nil, err
			}
			return store.NewLocked(s, nil, lopts...), nil
		},
		func(l *store.Locked) {
			if err := l.Close(); err != nil {
				t.Errorf("close store: %v", err)
			}
		},
	)
	t.Cleanup(h.Shutdown)
	return h
}

func newTestController(t *testing.T, h *refcount.Handle[*store.Locked], opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(testutil.NewDeterministicClock(1000, 10))}, opts...)
	c := NewController(h, opts...)
	t.Cleanup(func() {
		if c.Recording() {
			_ = c.StopRecording()
		}
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = c.Wait(ctx)
	})
	return c
}

func nextValue[T any](t *testing.T, sub *statestream.Subscription[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	v, err := sub.Next(ctx)
	require.NoError(t, err)
	return v
}

// waitFor reads sub until a value satisfies ok.
func waitFor[T any](t *testing.T, sub *statestream.Subscription[T], ok func(T) bool) T {
	t.Helper()
	for {
		if v := nextValue(t, sub); ok(v) {
			return v
		}
	}
}

func waitDone(t *testing.T, c *Controller) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	err := c.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "worker did not exit")
	return err
}

// readPaths returns a snapshot of every path, opening the store if needed.
func readPaths(t *testing.T, h *refcount.Handle[*store.Locked]) []ListItem {
	t.Helper()
	var items []ListItem
	require.NoError(t, refcount.With(h, func(ds *store.Locked) error {
		ds.Lock()
		defer ds.Unlock()
		var err error
		items, err = QueryPathList(context.Background(), ds.Store())
		return err
	}))
	return items
}
