package machine

import "sync/atomic"

// Clock is the monotonic logical clock that orders diagnostics.
//
// Diagnostics are stamped with a strictly increasing seq number so a run's
// reports can be replayed in order without relying on wall-clock time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
