/*
Release timestamps.

When the reference count of a buffer drops to zero, the buffer is stamped with the current
time of the cache clock, and the eviction scan compares these stamps.
The default clock counts timer ticks since the cache was created, like the tick counter
a kernel advances on every timer interrupt. Buffers released within the same tick get the same stamp.
CounterClock advances on every reading instead, so every release gets its own stamp.
*/
package buffer

import (
	"sync/atomic"
	"time"
)

// Clock is the time source of release timestamps
type Clock interface {
	Now() uint64
}

// defaultTickInterval is the timer interval of the reference kernel (about 1/10th second)
const defaultTickInterval = 100 * time.Millisecond

// TickClock counts ticks of interval since it was created
type TickClock struct {
	start    time.Time
	interval time.Duration
}

// NewTickClock initializes TickClock which starts at tick 0
func NewTickClock(interval time.Duration) *TickClock {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &TickClock{
		start:    time.Now(),
		interval: interval,
	}
}

// Now returns the number of ticks elapsed
func (c *TickClock) Now() uint64 {
	return uint64(time.Since(c.start) / c.interval)
}

// CounterClock is a logical clock which advances by one on every reading.
// the first reading returns 1
type CounterClock struct {
	count uint64
}

// Now advances the clock and returns it
func (c *CounterClock) Now() uint64 {
	return atomic.AddUint64(&c.count, 1)
}
