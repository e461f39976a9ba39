// Package timer provides the kernel's monotonic time sources.
package timer

import "time"

// Clock is a monotonic microsecond time source.
type Clock interface {
	NowMicros() uint64
}

// Monotonic reports microseconds elapsed since it was created.
type Monotonic struct {
	boot time.Time
}

// NewMonotonic starts a clock at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{boot: time.Now()}
}

// NowMicros implements Clock.
func (m *Monotonic) NowMicros() uint64 {
	return uint64(time.Since(m.boot).Microseconds())
}

// Split breaks a microsecond count into whole seconds and the remainder.
func Split(us uint64) (sec, usec uint64) {
	return us / 1_000_000, us % 1_000_000
}
