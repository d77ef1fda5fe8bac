package metrics

import (
	"time"

	"github.com/san-kum/rotorbridge/internal/msgs"
)

// Stability is the fraction of steps whose torque magnitude stays within
// threshold. An unobserved run counts as fully stable.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(w msgs.Wrench, st msgs.MotorStatus, t time.Duration) {
	s.samples++
	if w.Torque.Norm() > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
