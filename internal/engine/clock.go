package engine

import "sync/atomic"

// Clock is a monotonic logical counter.
//
// Collections use one clock to stamp fetches when they start (so late
// results can be recognized as stale) and another for view revisions.
// Never use wall-clock time for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value. Concurrent callers
// always receive distinct values.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
