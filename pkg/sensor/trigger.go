package sensor

import (
	"fmt"
	"sync"
	"time"
)

// MicrosPerInch is the echo round-trip time for one inch of range.
const MicrosPerInch = 148

// Line is an output line wired to a sensor trigger input.
type Line interface {
	SetValue(value int) error
}

// Clock is the time source used for trigger timing.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock spins for sub-millisecond waits, where time.Sleep is far too coarse.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

// Trigger issues sensor trigger pulses. Each pulse holds its line high for
// pause. Consecutive pulses start at least interval apart, whichever lines
// they go to, so one sensor's echo never reaches another.
type Trigger struct {
	clock    Clock
	interval time.Duration
	pause    time.Duration

	mu    sync.Mutex
	last  time.Time
	fired bool
}

// NewTrigger creates a trigger. A nil clock uses SystemClock.
func NewTrigger(interval, pause time.Duration, clock Clock) *Trigger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Trigger{
		clock:    clock,
		interval: interval,
		pause:    pause,
	}
}

// Fire emits one pulse on line and returns the time it started. If called
// before interval has passed since the previous pulse on any line, it waits
// for the remainder.
func (t *Trigger) Fire(line Line) (time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fired {
		if wait := t.interval - t.clock.Now().Sub(t.last); wait > 0 {
			t.clock.Sleep(wait)
		}
	}

	start := t.clock.Now()
	if err := line.SetValue(1); err != nil {
		return time.Time{}, fmt.Errorf("failed to raise trigger: %w", err)
	}
	t.clock.Sleep(t.pause)
	if err := line.SetValue(0); err != nil {
		return time.Time{}, fmt.Errorf("failed to release trigger: %w", err)
	}

	t.last = start
	t.fired = true
	return start, nil
}
