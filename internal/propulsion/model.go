// Package propulsion models a four-rotor propulsion unit: PWM commands are
// queued, admitted against simulation time, turned into armature voltages and
// integrated into rotor speeds, thrust and torque. A battery model supplies
// the voltage and tracks drain.
package propulsion

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/integrators"
	"github.com/san-kum/rotorbridge/internal/logging"
	"github.com/san-kum/rotorbridge/internal/msgs"
	"github.com/san-kum/rotorbridge/internal/queue"
	"go.uber.org/zap"
)

// DefaultSupplyVoltage is a fully charged 4S pack.
const DefaultSupplyVoltage = 14.8

// Model is driven from one simulation goroutine. Only AddCommand may be
// called concurrently with the others.
type Model struct {
	params Parameters
	sys    *motors
	integ  dynamo.Integrator
	log    *zap.Logger

	commands *queue.Queue[msgs.MotorPWM]

	initialVoltage float64
	charge         float64
	lastCommand    time.Duration

	omega   dynamo.State
	voltage dynamo.Control
	current []float64
	twist   msgs.Twist
	wrench  msgs.Wrench
	on      bool
}

type Option func(*Model)

func WithLogger(l *zap.Logger) Option {
	return func(m *Model) { m.log = logging.OrNop(l).Named("propulsion") }
}

func New(p Parameters, opts ...Option) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	integ, err := integrators.New(p.Integrator)
	if err != nil {
		return nil, fmt.Errorf("propulsion: %w", err)
	}
	m := &Model{
		params:         p,
		sys:            &motors{p: p},
		integ:          integ,
		log:            zap.NewNop(),
		commands:       queue.New[msgs.MotorPWM](),
		initialVoltage: DefaultSupplyVoltage,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Reset()
	return m, nil
}

func (m *Model) Params() Parameters { return m.params }

// SetInitialSupplyVoltage sets the no-load battery voltage used from now on
// and after every Reset.
func (m *Model) SetInitialSupplyVoltage(v float64) {
	m.initialVoltage = v
}

// AddCommand queues a command for a later ProcessQueue. Safe for concurrent
// use.
func (m *Model) AddCommand(cmd msgs.MotorPWM) {
	m.commands.Push(cmd)
}

// Pending reports the number of queued commands.
func (m *Model) Pending() int { return m.commands.Len() }

// ProcessQueue admits commands valid at now and applies them in arrival
// order. It may block up to wait (wall clock) for a command; if that wait
// runs out with nothing queued the motors are shut down. It reports whether
// any command was applied.
func (m *Model) ProcessQueue(now time.Duration, w queue.Window, wait time.Duration, pump queue.Pump) bool {
	if wait > 0 && m.commands.Len() == 0 {
		m.log.Debug("waiting for command",
			zap.Duration("t", now),
			zap.Duration("since_last_command", now-m.lastCommand))
	}

	admitted, timedOut := m.commands.Drain(now, w, wait, pump)
	if timedOut {
		m.log.Error("command timed out, disabling motors", zap.Duration("t", now), zap.Duration("wait", wait))
		m.Shutdown()
		return false
	}
	for _, cmd := range admitted {
		m.setVoltage(cmd)
	}
	if len(admitted) > 0 {
		m.log.Debug("using motor command",
			zap.Duration("valid_at", m.lastCommand),
			zap.Duration("t", now),
			zap.Int("admitted", len(admitted)))
	}
	return len(admitted) > 0
}

func (m *Model) setVoltage(cmd msgs.MotorPWM) {
	m.lastCommand = cmd.Stamp
	supply := m.busVoltage()
	for i := range m.voltage {
		if m.on && len(cmd.PWM) >= msgs.NumMotors {
			m.voltage[i] = float64(cmd.PWM[i]) / 255.0 * supply
		} else {
			m.voltage[i] = 0
		}
	}
}

// SetTwist feeds the body-frame velocity used for rotor inflow.
func (m *Model) SetTwist(t msgs.Twist) {
	m.twist = t
}

// Update advances motors and battery by dt seconds.
func (m *Model) Update(dt float64) {
	if dt <= 0 {
		return
	}
	if !m.on {
		for i := range m.voltage {
			m.voltage[i] = 0
		}
	}

	next := m.integ.Step(m.sys, m.omega, m.voltage, 0, dt)
	total := 0.0
	for i := range next {
		m.omega[i] = math.Max(0, next[i])
		m.current[i] = m.sys.current(m.voltage[i], m.omega[i])
		total += m.current[i]
	}
	m.charge = math.Max(0, m.charge-total*dt/3600.0)
	m.wrench = m.sys.wrench(m.omega, m.twist.Linear.Z)
}

func (m *Model) Wrench() msgs.Wrench { return m.wrench }

func (m *Model) MotorStatus() msgs.MotorStatus {
	s := msgs.MotorStatus{
		On:        m.on,
		Voltage:   make([]float64, msgs.NumMotors),
		Frequency: make([]float64, msgs.NumMotors),
		Current:   make([]float64, msgs.NumMotors),
	}
	for i := 0; i < msgs.NumMotors; i++ {
		s.Voltage[i] = m.voltage[i]
		s.Frequency[i] = m.omega[i] / (2 * math.Pi)
		s.Current[i] = m.current[i]
		if m.omega[i] > m.params.RunningThreshold {
			s.Running = true
		}
	}
	return s
}

func (m *Model) Supply() msgs.Supply {
	total := 0.0
	for _, c := range m.current {
		total += c
	}
	return msgs.Supply{
		Voltage: []float64{m.busVoltage()},
		Current: []float64{total},
		Charge:  m.charge,
	}
}

// busVoltage sags with state of charge and load.
func (m *Model) busVoltage() float64 {
	soc := m.charge / m.params.Capacity
	load := 0.0
	for _, c := range m.current {
		load += c
	}
	return math.Max(0, m.initialVoltage*(0.9+0.1*soc)-m.params.RI*load)
}

func (m *Model) On() bool { return m.on }

// Engage switches the motors on.
func (m *Model) Engage() { m.on = true }

// Shutdown switches the motors off; commands are ignored until Engage.
func (m *Model) Shutdown() {
	m.on = false
	for i := range m.voltage {
		m.voltage[i] = 0
	}
}

// Reset returns the model to a full battery, stopped rotors and engaged
// motors, dropping any queued commands.
func (m *Model) Reset() {
	m.commands.Clear()
	m.omega = make(dynamo.State, msgs.NumMotors)
	m.voltage = make(dynamo.Control, msgs.NumMotors)
	m.current = make([]float64, msgs.NumMotors)
	m.twist = msgs.Twist{}
	m.wrench = msgs.Wrench{}
	m.charge = m.params.Capacity
	m.lastCommand = 0
	m.on = true
}
