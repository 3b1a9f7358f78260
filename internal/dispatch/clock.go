package dispatch

import "sync/atomic"

// Clock is a monotonic logical clock for arrival and event ordering.
//
// Every instance is stamped with a strictly increasing seq number at trigger
// time, and every observer notification carries its own seq. This ensures:
// - Deterministic FIFO tie-breaking among equal priorities
// - A total order over admitted/finished events without wall-clock races
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used by tests that need predictable seq values mid-range.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
