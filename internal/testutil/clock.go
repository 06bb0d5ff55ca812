// Package testutil holds deterministic stand-ins shared by package tests.
package testutil

import "sync"

// DeterministicClock is a millisecond clock for tests. Every reading
// advances it by a fixed step, so successive readings strictly increase
// and a test can predict each value.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	now   int64
}

// NewDeterministicClock creates a clock whose first reading is start and
// which advances by step on every reading. A step below 1 is treated as 1.
func NewDeterministicClock(start, step int64) *DeterministicClock {
	if step < 1 {
		step = 1
	}
	return &DeterministicClock{start: start, step: step, now: start - step}
}

// NowMillis advances the clock and returns the new reading.
func (c *DeterministicClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the last reading without advancing. Before the first
// reading it returns start - step.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock so the next reading is start again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start - c.step
}
