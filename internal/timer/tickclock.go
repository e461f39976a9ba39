// internal/timer/tickclock.go

package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickClock is a deterministic clock: time only moves when it is ticked.
type TickClock struct {
	tickUS uint64
	count  atomic.Uint64
	once   sync.Once
	stop   chan struct{}
}

// NewTickClock creates a clock where every tick is worth tickUS microseconds.
func NewTickClock(tickUS uint64) *TickClock {
	if tickUS == 0 {
		tickUS = 1
	}
	return &TickClock{
		tickUS: tickUS,
		stop:   make(chan struct{}),
	}
}

// Start advances the clock by one tick every interval until Stop is called.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the ticker goroutine to exit. Safe to call more than once.
func (c *TickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Advance moves the clock forward by n ticks.
func (c *TickClock) Advance(n uint64) {
	c.count.Add(n)
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() uint64 {
	return c.count.Load()
}

// NowMicros implements Clock.
func (c *TickClock) NowMicros() uint64 {
	return c.count.Load() * c.tickUS
}
