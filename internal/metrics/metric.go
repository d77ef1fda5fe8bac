// Package metrics summarises a run. Metric implementations fold per-step
// propulsion telemetry into one number; Recorder exports live counters to
// prometheus.
package metrics

import (
	"time"

	"github.com/san-kum/rotorbridge/internal/msgs"
)

// Metric accumulates one summary value over the steps of a run.
type Metric interface {
	Name() string
	Observe(w msgs.Wrench, s msgs.MotorStatus, t time.Duration)
	Value() float64
	Reset()
}

// Standard returns the metrics every run records.
func Standard(stabilityLimit float64) []Metric {
	return []Metric{
		NewMeanThrust(),
		NewPeakTorque(),
		NewMotorUptime(),
		NewControlEffort(),
		NewEnergy(),
		NewStability(stabilityLimit),
	}
}

// Summary evaluates every metric by name.
func Summary(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
