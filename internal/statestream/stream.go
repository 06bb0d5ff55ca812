// Package statestream provides a latest-value broadcast stream.
//
// A Stream caches the most recent value. Each new Subscription first
// receives that cached value and then every later update, in order.
// Subscriptions buffer without bound so a slow reader never blocks Update.
package statestream

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Subscription.Next after Close.
var ErrClosed = errors.New("statestream: subscription closed")

// Stream is a thread-safe latest-value stream.
type Stream[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[*Subscription[T]]struct{}
}

// New creates a stream holding initial.
func New[T any](initial T) *Stream[T] {
	return &Stream[T]{
		current: initial,
		subs:    make(map[*Subscription[T]]struct{}),
	}
}

// Update replaces the cached value and delivers it to every subscriber.
// May be called from any goroutine.
func (s *Stream[T]) Update(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = v
	for sub := range s.subs {
		sub.push(v)
	}
}

// Current returns the cached value.
func (s *Stream[T]) Current() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers a new subscriber. The cached value is the first
// value returned by Next.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		stream: s,
		signal: make(chan struct{}, 1),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sub.push(s.current)
	s.subs[sub] = struct{}{}
	return sub
}

func (s *Stream[T]) remove(sub *Subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

// Subscribers returns the number of open subscriptions.
func (s *Stream[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Subscription is one reader's view of a Stream. Next must be called from a
// single goroutine; Close may be called from any goroutine.
type Subscription[T any] struct {
	stream *Stream[T]

	mu      sync.Mutex
	pending []T
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func (sub *Subscription[T]) push(v T) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.pending = append(sub.pending, v)
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *Subscription[T]) tryNext() (T, bool, error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	var zero T
	if sub.closed {
		return zero, false, ErrClosed
	}
	if len(sub.pending) == 0 {
		return zero, false, nil
	}
	v := sub.pending[0]
	sub.pending[0] = zero
	sub.pending = sub.pending[1:]
	return v, true, nil
}

// Next blocks until a value is available, the subscription is closed, or
// ctx is done.
func (sub *Subscription[T]) Next(ctx context.Context) (T, error) {
	for {
		v, ok, err := sub.tryNext()
		if err != nil || ok {
			return v, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-sub.signal:
		}
	}
}

// Close unregisters the subscription and wakes a blocked Next.
func (sub *Subscription[T]) Close() {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	sub.pending = nil
	close(sub.signal)
	sub.mu.Unlock()

	sub.stream.remove(sub)
}
