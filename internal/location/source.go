package location

import (
	"errors"
	"sync"
)

// ErrSourceClosed is returned by Subscribe after the source has been closed.
var ErrSourceClosed = errors.New("location: source closed")

// Listener receives location updates. It is invoked on the source's
// delivery goroutine and must not block.
type Listener func(Sample)

// Subscription is the caller-owned registration returned by Subscribe.
type Subscription interface {
	// Cancel stops delivery to the listener. Safe to call more than once.
	Cancel()
}

// Source provides location updates as they occur.
type Source interface {
	// Subscribe starts asynchronous delivery of updates to l.
	Subscribe(l Listener) (Subscription, error)

	// LastKnown returns the most recent fix, if any.
	LastKnown() (Sample, bool)
}

// Broadcaster is a Source that fans every published Sample out to all
// current subscribers. It remembers the last published Sample.
//
// The optional start/stop hooks run when the subscriber count goes from
// zero to one and back, so an upstream feed only runs while someone listens.
//
// Thread-safety: all methods are safe for concurrent use.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[*subscription]Listener
	last      Sample
	hasLast   bool
	closed    bool

	onStart func()
	onStop  func()
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithUpstream sets hooks that run when the first listener subscribes and
// when the last listener cancels.
func WithUpstream(start, stop func()) BroadcasterOption {
	return func(b *Broadcaster) {
		b.onStart = start
		b.onStop = stop
	}
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{listeners: make(map[*subscription]Listener)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type subscription struct {
	b    *Broadcaster
	once sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() { s.b.remove(s) })
}

// Subscribe registers l for every Sample published from now on.
func (b *Broadcaster) Subscribe(l Listener) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrSourceClosed
	}
	sub := &subscription{b: b}
	b.listeners[sub] = l
	if len(b.listeners) == 1 && b.onStart != nil {
		b.onStart()
	}
	return sub, nil
}

func (b *Broadcaster) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.listeners[sub]; !ok {
		return
	}
	delete(b.listeners, sub)
	if len(b.listeners) == 0 && b.onStop != nil {
		b.onStop()
	}
}

// Publish records s as the last known fix and delivers it to every
// subscriber. Listeners run on the caller's goroutine outside the lock.
func (b *Broadcaster) Publish(s Sample) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.last = s
	b.hasLast = true
	toNotify := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		toNotify = append(toNotify, l)
	}
	b.mu.Unlock()

	for _, l := range toNotify {
		l(s)
	}
}

// LastKnown returns the most recently published Sample.
func (b *Broadcaster) LastKnown() (Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

// Listeners returns the number of active subscriptions.
func (b *Broadcaster) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Close drops every subscriber and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	had := len(b.listeners) > 0
	b.listeners = make(map[*subscription]Listener)
	if had && b.onStop != nil {
		b.onStop()
	}
}
