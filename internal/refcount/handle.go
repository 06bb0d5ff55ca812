// Package refcount manages the lifecycle of an expensive shared value.
//
// A Handle creates its value lazily on the first Acquire, hands the same
// instance to every concurrent holder, and closes it when the last holder
// releases it. A later Acquire creates a fresh value. Shutdown is terminal.
//
// State machine:
//
//	{Empty, Live} x {Active, ShutDown}
//
// Empty/Active is initial. Acquire moves Empty/Active to Live/Active. Release
// of the last reference moves Live/Active back to Empty/Active. Shutdown
// moves either state to ShutDown, force-closing a live value.
package refcount

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrShutDown is returned by Acquire and Release after Shutdown.
	ErrShutDown = errors.New("refcount: handle already shut down")

	// ErrNotHeld is returned by Release when no reference is outstanding.
	ErrNotHeld = errors.New("refcount: no reference to release")

	// ErrWrongInstance is returned by Release when the value is not the one
	// handed out by Acquire.
	ErrWrongInstance = errors.New("refcount: released value is not the live instance")

	// ErrZeroValue is returned by Acquire when the factory produced a zero value.
	ErrZeroValue = errors.New("refcount: factory returned zero value")
)

// Factory creates the shared value. It runs inline inside Acquire while the
// handle's mutex is held.
type Factory[T any] func() (T, error)

// Closer releases the shared value. Called exactly once per factory result.
type Closer[T any] func(T)

// Handle is a reference-counted wrapper around a lazily created value.
//
// Thread-safety: all methods are serialized by a single mutex.
type Handle[T comparable] struct {
	factory Factory[T]
	closer  Closer[T]
	logger  *slog.Logger

	mu       sync.Mutex
	value    T
	live     bool
	refs     int
	shutdown bool
}

// Option configures a Handle.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for lifecycle diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates an empty, active handle.
func New[T comparable](factory Factory[T], closer Closer[T], opts ...Option) *Handle[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Handle[T]{
		factory: factory,
		closer:  closer,
		logger:  o.logger,
	}
}

// Acquire returns the live value, creating it on first use, and increments
// the reference count. Every successful Acquire must be paired with Release.
func (h *Handle[T]) Acquire() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	if h.shutdown {
		return zero, ErrShutDown
	}

	if !h.live {
		v, err := h.factory()
		if err != nil {
			return zero, fmt.Errorf("refcount: create: %w", err)
		}
		if v == zero {
			return zero, ErrZeroValue
		}
		h.value = v
		h.live = true
		h.logger.Debug("shared value created")
	}

	h.refs++
	return h.value, nil
}

// Release drops one reference. v must be the exact instance returned by
// Acquire. When the count reaches zero the closer runs and the value is
// cleared.
func (h *Handle[T]) Release(v T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return ErrShutDown
	}
	if h.refs <= 0 {
		return fmt.Errorf("%w: ref count is %d", ErrNotHeld, h.refs)
	}
	if !h.live || v != h.value {
		return ErrWrongInstance
	}

	h.refs--
	if h.refs == 0 {
		h.closeLocked()
	}
	return nil
}

// Shutdown marks the handle unusable. A live value is closed even when
// references are still outstanding; those holders must not use it afterwards.
// Calling Shutdown more than once is a no-op.
func (h *Handle[T]) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return
	}
	h.shutdown = true
	if h.live {
		if h.refs > 0 {
			// TODO: decide whether outstanding references should make this fail instead.
			h.logger.Warn("shutting down with outstanding references", "refs", h.refs)
		}
		h.closeLocked()
		h.refs = 0
	}
}

// RefCount returns the number of outstanding references.
func (h *Handle[T]) RefCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Live reports whether a value currently exists.
func (h *Handle[T]) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// IsShutDown reports whether Shutdown has been called.
func (h *Handle[T]) IsShutDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdown
}

func (h *Handle[T]) closeLocked() {
	var zero T
	v := h.value
	h.value = zero
	h.live = false
	h.closer(v)
	h.logger.Debug("shared value closed")
}

// With acquires a reference, runs fn with the value, and releases the
// reference when fn returns or panics. A release failure is reported only
// when fn itself succeeded.
func With[T comparable](h *Handle[T], fn func(T) error) (err error) {
	v, err := h.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if relErr := h.Release(v); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(v)
}
