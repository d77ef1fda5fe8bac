// Package timer decides, once per simulation step, whether a control-rate
// event is due.
package timer

import (
	"math"
	"time"
)

// Clock supplies the current simulation time.
type Clock interface {
	SimTime() time.Duration
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Duration

func (f ClockFunc) SimTime() time.Duration { return f() }

// Timer fires when at least one period of simulation time has passed since
// the last fire. A zero period disables it.
type Timer struct {
	clock  Clock
	period time.Duration
	last   time.Duration
}

func New(clock Clock, period time.Duration) *Timer {
	if period < 0 {
		period = 0
	}
	return &Timer{clock: clock, period: period}
}

// PeriodFrom resolves a control period from a rate in Hz or a period in
// seconds. The rate wins when both are set; neither set yields 0.
func PeriodFrom(rateHz, periodSec float64) time.Duration {
	switch {
	case rateHz > 0:
		return Seconds(1.0 / rateHz)
	case periodSec > 0:
		return Seconds(periodSec)
	default:
		return 0
	}
}

// Seconds converts floating seconds to a Duration, rounding to the nearest
// nanosecond so 0.01 becomes exactly 10ms.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (t *Timer) Period() time.Duration { return t.period }

func (t *Timer) Enabled() bool { return t.period > 0 }

// Last returns the simulation time of the most recent fire.
func (t *Timer) Last() time.Duration { return t.last }

// Update must be called exactly once per step.
func (t *Timer) Update() bool {
	if t.period <= 0 {
		return false
	}
	now := t.clock.SimTime()
	if now < t.last {
		// time went backwards (world reset without our Reset)
		t.last = now
		return false
	}
	if now-t.last < t.period {
		return false
	}
	t.last = now
	return true
}

func (t *Timer) Reset() {
	t.last = 0
}
