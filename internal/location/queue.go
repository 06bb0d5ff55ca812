package location

import (
	"context"
	"errors"
	"sync"
)

// ErrProducerEnabled is returned by EnableProducer when the queue is already
// subscribed to its source.
var ErrProducerEnabled = errors.New("location: producer already enabled")

// Queue subscribes to a Source and buffers updates for a blocking consumer.
//
// The queue is unbounded so a burst of fixes never blocks the source's
// delivery goroutine. Take is intended for a single consumer goroutine.
//
// The queue uses a channel for signaling so Take can select on the
// consumer's context; cancelling that context is the only way to interrupt
// a waiting Take.
type Queue struct {
	src Source

	mu      sync.Mutex
	samples []Sample
	sub     Subscription
	signal  chan struct{} // Signals sample availability (buffered, size 1)
}

// NewQueue creates an empty queue on src. Nothing is delivered until
// EnableProducer is called.
func NewQueue(src Source) *Queue {
	return &Queue{
		src:     src,
		samples: make([]Sample, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// EnableProducer subscribes to the source. Every update delivered from now
// on is appended to the queue.
func (q *Queue) EnableProducer() error {
	q.mu.Lock()
	if q.sub != nil {
		q.mu.Unlock()
		return ErrProducerEnabled
	}
	q.mu.Unlock()

	sub, err := q.src.Subscribe(q.offer)
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.sub = sub
	q.mu.Unlock()
	return nil
}

// DisableProducer cancels the subscription. Samples already queued are left
// in place and are dropped with the queue. Calling it without an enabled
// producer is a no-op.
func (q *Queue) DisableProducer() {
	q.mu.Lock()
	sub := q.sub
	q.sub = nil
	q.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// offer appends s to the back of the queue.
// Thread-safe: called from the source's delivery goroutine.
func (q *Queue) offer(s Sample) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.samples = append(q.samples, s)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// tryTake removes and returns the oldest sample without blocking.
func (q *Queue) tryTake() (Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.samples) == 0 {
		return Sample{}, false
	}

	s := q.samples[0]
	if len(q.samples) == 1 {
		// Reuse the backing array once drained
		q.samples = q.samples[:0]
	} else {
		q.samples = q.samples[1:]
	}
	return s, true
}

// Take blocks until a sample is available and returns the oldest one.
// If ctx is done, Take returns ctx.Err() and no sample, even when samples
// are queued.
func (q *Queue) Take(ctx context.Context) (Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		if s, ok := q.tryTake(); ok {
			return s, nil
		}

		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of queued samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.samples)
}
