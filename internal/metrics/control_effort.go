package metrics

import (
	"math"
	"time"

	"github.com/san-kum/rotorbridge/internal/msgs"
)

// ControlEffort is the mean absolute motor voltage per step.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(w msgs.Wrench, s msgs.MotorStatus, t time.Duration) {
	if len(s.Voltage) == 0 {
		return
	}
	var step float64
	for _, v := range s.Voltage {
		step += math.Abs(v)
	}
	c.sum += step / float64(len(s.Voltage))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
