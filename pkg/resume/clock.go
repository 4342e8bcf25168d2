package resume

import "time"

// Instant is a point on the turn's monotonic clock, in milliseconds.
type Instant uint64

// Add returns i advanced by d, truncated to milliseconds.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(d/time.Millisecond)
}

// Clock supplies monotonic instants. Expiry is never checked against wall time.
type Clock interface {
	Now() Instant
}

// MonotonicClock advances on the process's monotonic reading from an epoch
// taken once from the wall clock. Instants from different processes share
// the Unix millisecond timeline, so a buffer persisted by one process
// expires on time in the next.
type MonotonicClock struct {
	epoch Instant
	start time.Time
}

// NewMonotonicClock anchors a clock at the current Unix time in milliseconds.
func NewMonotonicClock() *MonotonicClock {
	start := time.Now()
	return &MonotonicClock{epoch: Instant(start.UnixMilli()), start: start}
}

// Now returns the epoch plus the milliseconds elapsed since creation.
// time.Since reads the monotonic reading carried by start, so wall clock
// steps after creation do not move it.
func (c *MonotonicClock) Now() Instant {
	return c.epoch + Instant(time.Since(c.start)/time.Millisecond)
}

// FixedClock always returns the same instant. Used for replay.
type FixedClock Instant

// Now returns c.
func (c FixedClock) Now() Instant { return Instant(c) }
