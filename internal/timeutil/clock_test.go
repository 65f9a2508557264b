package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestManualClockAdvancesOnSleep(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	c.Sleep(time.Second)
	c.Sleep(2 * time.Second)

	if got := c.Now(); !got.Equal(start.Add(3 * time.Second)) {
		t.Errorf("Now() = %v, want %v", got, start.Add(3*time.Second))
	}

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("Sleeps() = %v, want [1s 2s]", sleeps)
	}
}

func TestManualClockSince(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Sleep(5 * time.Second)

	if got := c.Since(start); got != 5*time.Second {
		t.Errorf("Since(start) = %v, want 5s", got)
	}
}

func TestManualClockOnSleepHook(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))

	var calls []int
	c.OnSleep(func(n int, d time.Duration) {
		calls = append(calls, n)
	})

	c.Sleep(time.Second)
	c.Sleep(time.Second)
	c.Sleep(time.Second)

	if len(calls) != 3 || calls[0] != 1 || calls[2] != 3 {
		t.Errorf("hook calls = %v, want [1 2 3]", calls)
	}
}

func TestManualClockSet(t *testing.T) {
	c := NewManualClock(time.Unix(100, 0))
	target := time.Unix(500, 0)
	c.Set(target)
	if got := c.Now(); !got.Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", got, target)
	}
}
