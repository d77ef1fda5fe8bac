package metrics

import (
	"time"

	"github.com/san-kum/rotorbridge/internal/msgs"
)

// Energy integrates electrical power drawn by the motors, in joules.
// Power is held constant between observations.
type Energy struct {
	name    string
	joules  float64
	power   float64
	last    time.Duration
	samples int
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(w msgs.Wrench, s msgs.MotorStatus, t time.Duration) {
	if e.samples > 0 && t > e.last {
		e.joules += e.power * (t - e.last).Seconds()
	}
	e.power = 0
	for i := range s.Voltage {
		if i < len(s.Current) {
			e.power += s.Voltage[i] * s.Current[i]
		}
	}
	e.last = t
	e.samples++
}

func (e *Energy) Value() float64 { return e.joules }

func (e *Energy) Reset() {
	e.joules = 0
	e.power = 0
	e.last = 0
	e.samples = 0
}
