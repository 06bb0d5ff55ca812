package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLockNotHeld is returned by Locked.Sync when nobody holds the lock. The
// check is best effort: it cannot tell which goroutine is the holder.
var ErrLockNotHeld = errors.New("store: lock must be held during sync")

// Locked pairs a Store with the lock that guards its records and with the
// listeners interested in syncs.
//
// Callers hold the lock across "mutate fields" + "Sync" pairs so readers
// never observe a half-applied change and two syncs never interleave.
// Listeners are notified on their own goroutines after every successful
// Sync; notifications to a listener that is still busy are coalesced.
type Locked struct {
	store  *Store
	logger *slog.Logger
	syncFn func(context.Context, *Store) error

	mu   sync.Mutex
	held atomic.Bool

	lmu       sync.Mutex
	listeners map[*syncListener]struct{}

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

// LockedOption configures a Locked.
type LockedOption func(*Locked)

// WithSyncFunc replaces the function Sync uses to sync the store. It
// defaults to (*Store).Sync; tests use it to inject sync failures.
func WithSyncFunc(fn func(context.Context, *Store) error) LockedOption {
	return func(l *Locked) { l.syncFn = fn }
}

// NewLocked wraps s. The Locked owns s from now on; Close closes it.
func NewLocked(s *Store, logger *slog.Logger, opts ...LockedOption) *Locked {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Locked{
		store:     s,
		logger:    logger,
		syncFn:    func(ctx context.Context, s *Store) error { return s.Sync(ctx) },
		listeners: make(map[*syncListener]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the wrapped store.
func (l *Locked) Store() *Store { return l.store }

// Lock acquires the record lock.
func (l *Locked) Lock() {
	l.mu.Lock()
	l.held.Store(true)
}

// Unlock releases the record lock.
func (l *Locked) Unlock() {
	l.held.Store(false)
	l.mu.Unlock()
}

// Sync syncs the store and notifies listeners. The caller must hold the lock.
func (l *Locked) Sync(ctx context.Context) error {
	if !l.held.Load() {
		return ErrLockNotHeld
	}
	if err := l.syncFn(ctx, l.store); err != nil {
		return err
	}
	l.notify()
	return nil
}

// SyncQuietly syncs and reports whether every watched record still exists.
// It returns (false, nil) when a watched record was deleted remotely and a
// non-nil error for any other failure. Deleted records that are not watched
// are only logged. The caller must hold the lock.
func (l *Locked) SyncQuietly(ctx context.Context, watched ...*Record) (bool, error) {
	err := l.Sync(ctx)
	var missing *MissingError
	if errors.As(err, &missing) {
		l.logger.Debug("sync found remotely deleted records", "error", err)
		// Surviving records were committed; readers still need to hear about it.
		l.notify()
		for _, rec := range watched {
			if missing.Contains(rec) {
				return false, nil
			}
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type syncListener struct {
	fn     func()
	signal chan struct{} // buffered, size 1
	done   chan struct{}
}

func (sl *syncListener) run() {
	for {
		select {
		case <-sl.done:
			return
		case <-sl.signal:
			sl.fn()
		}
	}
}

// AddSyncListener registers fn to run after every successful Sync. The
// returned function unregisters it; fn is not called after that returns,
// apart from an invocation already in progress.
func (l *Locked) AddSyncListener(fn func()) (remove func()) {
	sl := &syncListener{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	l.lmu.Lock()
	l.listeners[sl] = struct{}{}
	l.lmu.Unlock()

	go sl.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.lmu.Lock()
			_, registered := l.listeners[sl]
			delete(l.listeners, sl)
			l.lmu.Unlock()
			// Close may already have stopped it.
			if registered {
				close(sl.done)
			}
		})
	}
}

func (l *Locked) notify() {
	l.lmu.Lock()
	defer l.lmu.Unlock()
	for sl := range l.listeners {
		select {
		case sl.signal <- struct{}{}:
		default:
		}
	}
}

// StartAutoSync polls the database for commits made by other connections
// and syncs under the lock when one is seen, so listeners re-read incoming
// data. Calling it again replaces the running poller.
func (l *Locked) StartAutoSync(interval time.Duration) {
	l.StopAutoSync()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	l.autoMu.Lock()
	l.autoCancel = cancel
	l.autoDone = done
	l.autoMu.Unlock()

	go func() {
		defer close(done)
		l.pollIncoming(ctx, interval)
	}()
}

// StopAutoSync stops the poller started by StartAutoSync and waits for it.
func (l *Locked) StopAutoSync() {
	l.autoMu.Lock()
	cancel, done := l.autoCancel, l.autoDone
	l.autoCancel, l.autoDone = nil, nil
	l.autoMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (l *Locked) pollIncoming(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last, err := l.store.DataVersion(ctx)
	if err != nil {
		l.logger.Warn("auto sync disabled", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v, err := l.store.DataVersion(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Warn("data version check failed", "error", err)
			}
			continue
		}
		if v == last {
			continue
		}
		last = v

		l.logger.Debug("incoming changes, syncing")
		l.Lock()
		_, err = l.SyncQuietly(ctx)
		l.Unlock()
		if err != nil && ctx.Err() == nil {
			l.logger.Error("auto sync failed", "error", err)
		}
	}
}

// Close stops auto sync, drops every listener, and closes the store.
func (l *Locked) Close() error {
	l.StopAutoSync()

	l.lmu.Lock()
	for sl := range l.listeners {
		close(sl.done)
	}
	l.listeners = make(map[*syncListener]struct{})
	l.lmu.Unlock()

	return l.store.Close()
}
