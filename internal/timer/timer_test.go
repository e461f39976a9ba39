package timer

import (
	"testing"
	"time"
)

func TestTickClockAdvance(t *testing.T) {
	c := NewTickClock(250)
	if got := c.NowMicros(); got != 0 {
		t.Fatalf("NowMicros() = %d, want 0", got)
	}
	c.Advance(4)
	if got := c.Count(); got != 4 {
		t.Errorf("Count() = %d, want 4", got)
	}
	if got := c.NowMicros(); got != 1000 {
		t.Errorf("NowMicros() = %d, want 1000", got)
	}
}

func TestTickClockStartStop(t *testing.T) {
	c := NewTickClock(1)
	c.Start(time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for c.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ticker never advanced the clock")
		}
		time.Sleep(time.Millisecond)
	}
	c.Stop()
	c.Stop()
}

func TestMonotonicNeverGoesBack(t *testing.T) {
	m := NewMonotonic()
	a := m.NowMicros()
	time.Sleep(2 * time.Millisecond)
	b := m.NowMicros()
	if b < a {
		t.Errorf("clock went backwards: %d then %d", a, b)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		us        uint64
		sec, usec uint64
	}{
		{0, 0, 0},
		{999_999, 0, 999_999},
		{1_000_000, 1, 0},
		{3_250_017, 3, 250_017},
	}
	for _, tt := range tests {
		sec, usec := Split(tt.us)
		if sec != tt.sec || usec != tt.usec {
			t.Errorf("Split(%d) = (%d, %d), want (%d, %d)", tt.us, sec, usec, tt.sec, tt.usec)
		}
	}
}
