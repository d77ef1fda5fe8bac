// Package experiment assembles a world, a vehicle, a propulsion bridge and an
// external controller into one runnable, recordable flight.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/rotorbridge/internal/bridge"
	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/controllers"
	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/engine"
	"github.com/san-kum/rotorbridge/internal/metrics"
	"github.com/san-kum/rotorbridge/internal/timer"
	"github.com/san-kum/rotorbridge/internal/transport"
)

// ErrNotSetup is returned by Run before a successful Setup.
var ErrNotSetup = errors.New("experiment: not set up")

// Sample is one recorded simulation step.
type Sample struct {
	Time      time.Duration
	Position  dynamo.Vec3
	Velocity  dynamo.Vec3
	Roll      float64
	Pitch     float64
	Yaw       float64
	Thrust    float64
	Torque    dynamo.Vec3
	Voltage   float64
	Current   float64
	Charge    float64
	Frequency []float64
	Trigger   bool
	Applied   bool
	On        bool
}

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
	Triggers   int
	Applied    int
	Commands   int
	SimTime    time.Duration
	WallTime   time.Duration
}

// Observer sees every recorded sample on the simulation goroutine.
type Observer interface {
	OnStep(s Sample)
}

type ObserverFunc func(Sample)

func (f ObserverFunc) OnStep(s Sample) { f(s) }

type Experiment struct {
	cfg      *config.Config
	bus      *transport.Bus
	log      *zap.Logger
	recorder *metrics.Recorder

	world   *engine.World
	body    *engine.RigidBody
	bridge  *bridge.Bridge
	ctrl    *controllers.Node
	metrics []metrics.Metric

	observers []Observer

	mu   sync.Mutex
	seen controllers.Observation

	result *Result
	ran    bool
}

type Option func(*Experiment)

func WithLogger(l *zap.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.log = l
		}
	}
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Experiment) { e.recorder = r }
}

// WithBus attaches the experiment to a shared transport bus.
func WithBus(b *transport.Bus) Option {
	return func(e *Experiment) { e.bus = b }
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = transport.NewBus()
	}
	return e
}

func (e *Experiment) AddObserver(o Observer) { e.observers = append(e.observers, o) }

func (e *Experiment) Config() *config.Config { return e.cfg }

// Setup builds the world and loads the bridge. The controller node is
// created here and started by Run.
func (e *Experiment) Setup(reg *Registry) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	integ, err := reg.GetIntegrator(e.cfg.World.Integrator)
	if err != nil {
		return err
	}

	world, err := engine.NewWorld(timer.Seconds(e.cfg.World.StepSize),
		engine.WithIntegrator(integ),
		engine.WithGravity(dynamo.Vec3{Z: -e.cfg.World.Gravity}))
	if err != nil {
		return err
	}
	name := e.cfg.Body.Name
	if name == "" {
		name = "base_link"
	}
	body, err := engine.NewRigidBody(name, e.cfg.Body.Mass, e.cfg.Body.Inertia)
	if err != nil {
		return err
	}
	body.CoG = e.cfg.Body.CoG
	body.SetPose(dynamo.Vec3{Z: e.cfg.Body.Altitude}, engine.QuatFromEuler(0, 0, 0))
	world.AddBody(body)

	// snapshot first so the controller sees the state the trigger refers to
	world.ConnectUpdateBegin(func() { e.snapshot(world.SimTime(), body) })
	e.snapshot(0, body)

	e.metrics = reg.DefaultMetrics()
	e.result = &Result{Metrics: map[string]float64{}}

	// without a command topic there is nothing for a controller to drive
	if e.cfg.Controller.Type != "" && e.cfg.Controller.Type != "off" && e.cfg.Bridge.VoltageTopicName != "" {
		alt, err := reg.GetController(e.cfg.Controller)
		if err != nil {
			return err
		}
		trigger := e.cfg.Bridge.TriggerTopic
		if timer.PeriodFrom(e.cfg.Bridge.ControlRate, e.cfg.Bridge.ControlPeriod) == 0 {
			trigger = ""
		}
		ctrl, err := controllers.NewNode(e.bus, e.cfg.Bridge.RobotNamespace, controllers.NodeConfig{
			TriggerTopic: trigger,
			CommandTopic: e.cfg.Bridge.VoltageTopicName,
			HoverPWM:     e.cfg.Controller.HoverPWM,
		}, alt, e.sense, controllers.WithLogger(e.log), controllers.WithAttitude(controllers.NewAttitudeLQR()))
		if err != nil {
			return fmt.Errorf("experiment: controller: %w", err)
		}
		e.ctrl = ctrl
	}

	b, err := bridge.Load(world, body, e.cfg, e.bus,
		bridge.WithLogger(e.log),
		bridge.WithRecorder(e.recorder))
	if err != nil {
		if e.ctrl != nil {
			e.ctrl.Close()
		}
		return err
	}
	b.AddObserver(e.record)

	e.world, e.body, e.bridge = world, body, b
	return nil
}

func (e *Experiment) snapshot(t time.Duration, body *engine.RigidBody) {
	pos, vel := body.Position(), body.WorldLinearVel()
	roll, pitch, _ := body.Orientation().Euler()
	rates := body.RelativeAngularVel()
	e.mu.Lock()
	e.seen = controllers.Observation{
		Time:      t,
		Altitude:  pos.Z,
		Climb:     vel.Z,
		Roll:      roll,
		Pitch:     pitch,
		RollRate:  rates.X,
		PitchRate: rates.Y,
	}
	e.mu.Unlock()
}

func (e *Experiment) sense() controllers.Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seen
}

func (e *Experiment) record(s bridge.Step) {
	for _, m := range e.metrics {
		m.Observe(s.Wrench, s.Status, s.Time)
	}

	roll, pitch, yaw := e.body.Orientation().Euler()
	smp := Sample{
		Time:      s.Time,
		Position:  e.body.Position(),
		Velocity:  e.body.WorldLinearVel(),
		Roll:      roll,
		Pitch:     pitch,
		Yaw:       yaw,
		Thrust:    s.Wrench.Force.Z,
		Torque:    s.Wrench.Torque,
		Frequency: append([]float64(nil), s.Status.Frequency...),
		Trigger:   s.Trigger,
		Applied:   s.Applied,
		On:        s.Status.On,
		Charge:    s.Supply.Charge,
	}
	if len(s.Supply.Voltage) > 0 {
		smp.Voltage = s.Supply.Voltage[0]
	}
	if len(s.Supply.Current) > 0 {
		smp.Current = s.Supply.Current[0]
	}

	r := e.result
	r.Samples = append(r.Samples, smp)
	r.StepsTaken++
	if s.Trigger {
		r.Triggers++
	}
	if s.Applied {
		r.Applied++
	}
	for _, o := range e.observers {
		o.OnStep(smp)
	}
}

// Run flies the configured duration. An experiment runs once; the bridge
// and controller are torn down before Run returns.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.world == nil {
		return nil, ErrNotSetup
	}
	if e.ran {
		return nil, errors.New("experiment: already run")
	}
	e.ran = true

	for _, m := range e.metrics {
		m.Reset()
	}
	if e.ctrl != nil {
		e.ctrl.Start(ctx)
	}

	start := time.Now()
	err := e.world.Run(ctx, timer.Seconds(e.cfg.World.Duration))
	e.result.WallTime = time.Since(start)

	e.Close()

	e.result.SimTime = e.world.SimTime()
	e.result.Metrics = metrics.Summary(e.metrics)
	if e.ctrl != nil {
		e.result.Commands = e.ctrl.Sent()
	}
	e.log.Info("run finished",
		zap.String("robot", e.cfg.Bridge.RobotNamespace),
		zap.Duration("sim_time", e.result.SimTime),
		zap.Duration("wall_time", e.result.WallTime),
		zap.Int("steps", e.result.StepsTaken),
		zap.Int("triggers", e.result.Triggers),
		zap.Int("applied", e.result.Applied))
	return e.result, err
}

// Close tears down the bridge, then the controller. Safe to call twice.
func (e *Experiment) Close() {
	if e.bridge != nil {
		e.bridge.Close()
	}
	if e.ctrl != nil {
		e.ctrl.Close()
	}
}

// World exposes the simulation world.
func (e *Experiment) World() *engine.World { return e.world }
