package metrics

import (
	"math"
	"time"

	"github.com/san-kum/rotorbridge/internal/msgs"
)

// MeanThrust is the average collective thrust in newtons.
type MeanThrust struct {
	sum     float64
	samples int
}

func NewMeanThrust() *MeanThrust { return &MeanThrust{} }

func (m *MeanThrust) Name() string { return "mean_thrust" }

func (m *MeanThrust) Observe(w msgs.Wrench, s msgs.MotorStatus, t time.Duration) {
	m.sum += w.Force.Z
	m.samples++
}

func (m *MeanThrust) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanThrust) Reset() { *m = MeanThrust{} }

// PeakTorque is the largest torque magnitude seen.
type PeakTorque struct {
	peak float64
}

func NewPeakTorque() *PeakTorque { return &PeakTorque{} }

func (p *PeakTorque) Name() string { return "peak_torque" }

func (p *PeakTorque) Observe(w msgs.Wrench, s msgs.MotorStatus, t time.Duration) {
	p.peak = math.Max(p.peak, w.Torque.Norm())
}

func (p *PeakTorque) Value() float64 { return p.peak }
func (p *PeakTorque) Reset()         { p.peak = 0 }

// MotorUptime is the fraction of steps with the motors running.
type MotorUptime struct {
	running int
	samples int
}

func NewMotorUptime() *MotorUptime { return &MotorUptime{} }

func (m *MotorUptime) Name() string { return "motor_uptime" }

func (m *MotorUptime) Observe(w msgs.Wrench, s msgs.MotorStatus, t time.Duration) {
	if s.Running {
		m.running++
	}
	m.samples++
}

func (m *MotorUptime) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.running) / float64(m.samples)
}

func (m *MotorUptime) Reset() { *m = MotorUptime{} }
