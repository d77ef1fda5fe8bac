package bridge

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/engine"
	"github.com/san-kum/rotorbridge/internal/logging"
	"github.com/san-kum/rotorbridge/internal/metrics"
	"github.com/san-kum/rotorbridge/internal/msgs"
	"github.com/san-kum/rotorbridge/internal/propulsion"
	"github.com/san-kum/rotorbridge/internal/queue"
	"github.com/san-kum/rotorbridge/internal/timer"
	"github.com/san-kum/rotorbridge/internal/transport"
)

const (
	// commandWait bounds how long a triggered step blocks for its command.
	commandWait = time.Second

	supplyPeriod = time.Second

	queueThreadTimeout = 10 * time.Millisecond
)

// Bridge is one loaded propulsion plugin. Update is driven by the world's
// update-begin notification. Reset may be called from any goroutine at any
// time and is serialized with Update.
type Bridge struct {
	world World
	link  Link
	model Propulsion
	cfg   config.Bridge

	node      *transport.Node
	callbacks *transport.CallbackQueue

	triggerPub *transport.Publisher
	wrenchPub  *transport.Publisher
	supplyPub  *transport.Publisher
	statusPub  *transport.Publisher

	timer  *timer.Timer
	window queue.Window

	// mu guards the model, the timer and the timestamps below.
	mu              sync.Mutex
	lastTime        time.Duration
	lastTrigger     time.Duration
	lastMotorStatus time.Duration
	lastSupply      time.Duration

	updateConn *engine.Connection
	resetConn  *engine.Connection

	threaded bool
	wg       sync.WaitGroup

	obsMu     sync.Mutex
	observers []func(Step)

	log   *zap.Logger
	probe *metrics.Probe

	closeOnce sync.Once
}

type Option func(*Bridge)

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.log = logging.OrNop(l) }
}

// WithRecorder reports step counters under the robot namespace.
func WithRecorder(r *metrics.Recorder) Option {
	return func(b *Bridge) {
		robot := b.cfg.RobotNamespace
		if robot == "" {
			robot = "default"
		}
		b.probe = r.Probe(robot)
	}
}

// WithPropulsion replaces the quadrotor model built from the parameter set.
func WithPropulsion(p Propulsion) Option {
	return func(b *Bridge) { b.model = p }
}

// Load arms a bridge for world and link. Missing propulsion parameters are
// the only fatal condition; disabled topics are simply skipped.
func Load(world World, link Link, cfg *config.Config, bus *transport.Bus, opts ...Option) (*Bridge, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Bridge.Validate(); err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	params, err := cfg.ModelParams()
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}

	b := &Bridge{
		world: world,
		link:  link,
		cfg:   cfg.Bridge,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.Named("bridge")

	if b.model == nil {
		m, err := propulsion.New(params, propulsion.WithLogger(b.log))
		if err != nil {
			return nil, fmt.Errorf("bridge: %w", err)
		}
		b.model = m
	}

	b.timer = timer.New(world, timer.PeriodFrom(b.cfg.ControlRate, b.cfg.ControlPeriod))
	b.window = queue.Window{
		Tolerance: timer.Seconds(b.cfg.ControlTolerance),
		Delay:     timer.Seconds(b.cfg.ControlDelay),
	}
	if b.cfg.SupplyVoltage > 0 {
		b.model.SetInitialSupplyVoltage(b.cfg.SupplyVoltage)
	}

	b.callbacks = transport.NewCallbackQueue()
	b.node = transport.NewNode(bus, b.cfg.RobotNamespace, b.callbacks)
	if err := b.advertise(); err != nil {
		b.node.Shutdown()
		return nil, fmt.Errorf("bridge: %w", err)
	}

	if b.cfg.QueueThread {
		b.threaded = true
		b.wg.Add(1)
		go b.queueThread()
	}

	b.Reset()

	b.updateConn = world.ConnectUpdateBegin(b.Update)
	if rn, ok := world.(resetNotifier); ok {
		b.resetConn = rn.ConnectReset(b.Reset)
	}

	b.log.Info("propulsion bridge loaded",
		zap.String("namespace", b.cfg.RobotNamespace),
		zap.String("params", b.cfg.ParamNamespace),
		zap.Duration("control_period", b.timer.Period()),
		zap.Duration("tolerance", b.window.Tolerance),
		zap.Duration("delay", b.window.Delay),
		zap.Bool("queue_thread", b.threaded))
	return b, nil
}

func (b *Bridge) advertise() error {
	var err error
	if b.cfg.TriggerTopic != "" {
		if b.triggerPub, err = b.node.Advertise(b.cfg.TriggerTopic, false); err != nil {
			return err
		}
	}
	if b.cfg.VoltageTopicName != "" {
		if _, err = transport.Subscribe(b.node, b.cfg.VoltageTopicName, b.model.AddCommand); err != nil {
			return err
		}
	}
	if b.cfg.WrenchTopic != "" {
		if b.wrenchPub, err = b.node.Advertise(b.cfg.WrenchTopic, false); err != nil {
			return err
		}
	}
	if b.cfg.SupplyTopic != "" {
		if b.supplyPub, err = b.node.Advertise(b.cfg.SupplyTopic, true); err != nil {
			return err
		}
		supply := b.model.Supply()
		if err = b.supplyPub.Publish(supply); err != nil {
			return err
		}
		if len(supply.Voltage) > 0 {
			b.probe.Supply(supply.Voltage[0])
		}
	}
	if b.cfg.StatusTopic != "" {
		if b.statusPub, err = b.node.Advertise(b.cfg.StatusTopic, false); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) queueThread() {
	defer b.wg.Done()
	for b.node.Ok() {
		b.callbacks.CallAvailable(queueThreadTimeout)
	}
}

// Update runs one step of the pipeline. Steps where simulation time has not
// advanced are ignored.
func (b *Bridge) Update() {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.world.SimTime()
	dt := t - b.lastTime
	if dt <= 0 {
		b.probe.Skipped()
		return
	}
	b.lastTime = t

	trigger := b.timer.Update()
	if trigger {
		b.probe.Trigger()
		if b.triggerPub != nil {
			if err := b.triggerPub.Publish(msgs.Clock{Stamp: t}); err != nil {
				b.log.Warn("trigger not sent", zap.Error(err))
			}
			b.log.Debug("sent a new trigger",
				zap.Duration("t", t),
				zap.Duration("dt", t-b.lastTrigger))
			b.lastTrigger = t
		}
	}

	b.callbacks.CallAvailable(0)

	var wait time.Duration
	if trigger && b.model.On() {
		wait = commandWait
	}
	var pump queue.Pump
	if !b.threaded {
		pump = b.callbacks
	}
	applied := b.model.ProcessQueue(t, b.window, wait, pump)
	if applied {
		b.probe.Applied()
	} else if wait > 0 && !b.model.On() {
		b.probe.Timeout()
	}

	b.model.SetTwist(msgs.Twist{
		Linear:  b.link.RelativeLinearVel(),
		Angular: b.link.RelativeAngularVel(),
	})
	b.model.Update(dt.Seconds())

	w := b.model.Wrench()
	if b.wrenchPub != nil {
		_ = b.wrenchPub.Publish(w)
	}

	status := b.model.MotorStatus()
	if b.statusPub != nil && trigger {
		status.Stamp = t
		_ = b.statusPub.Publish(status.Clone())
		b.lastMotorStatus = t
	}

	supply := b.model.Supply()
	if b.supplyPub != nil && t >= b.lastSupply+supplyPeriod {
		_ = b.supplyPub.Publish(supply.Clone())
		b.lastSupply = t
		if len(supply.Voltage) > 0 {
			b.probe.Supply(supply.Voltage[0])
		}
	}

	// the link takes torque about its centre of mass
	b.link.AddRelativeForce(w.Force)
	b.link.AddRelativeTorque(w.Torque.Sub(b.link.CenterOfMass().Cross(w.Force)))

	b.probe.Step(w.Force.Z)
	b.notify(Step{
		Time:    t,
		Dt:      dt,
		Trigger: trigger,
		Applied: applied,
		Wrench:  w,
		Status:  status,
		Supply:  supply,
	})
}

// AddObserver registers fn to receive every processed step. It runs on the
// simulation goroutine inside Update and must neither block nor call back
// into the bridge.
func (b *Bridge) AddObserver(fn func(Step)) {
	b.obsMu.Lock()
	b.observers = append(b.observers, fn)
	b.obsMu.Unlock()
}

func (b *Bridge) notify(s Step) {
	b.obsMu.Lock()
	obs := b.observers
	b.obsMu.Unlock()
	for _, fn := range obs {
		fn(s)
	}
}

// Reset returns the model, the control timer and the telemetry timestamps to
// their initial state. It does not run a step.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model.Reset()
	b.timer.Reset()
	b.lastTime = 0
	b.lastTrigger = 0
	b.lastMotorStatus = 0
	b.lastSupply = 0
}

// Close detaches from the world, waiting for a running step to finish, then
// shuts the transport node down and joins the queue goroutine.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.world.Disconnect(b.updateConn)
		if b.resetConn != nil {
			b.world.Disconnect(b.resetConn)
		}
		b.node.Shutdown()
		b.wg.Wait()
		b.log.Info("propulsion bridge closed", zap.String("namespace", b.cfg.RobotNamespace))
	})
}

// Model exposes the propulsion model, mainly for inspection.
func (b *Bridge) Model() Propulsion { return b.model }

// Timing reports the resolved control period and drain window.
func (b *Bridge) Timing() (period time.Duration, window queue.Window) {
	return b.timer.Period(), b.window
}

// Timestamps returns lastTime, lastTrigger, lastMotorStatus and lastSupply.
func (b *Bridge) Timestamps() (last, trigger, status, supply time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTime, b.lastTrigger, b.lastMotorStatus, b.lastSupply
}
