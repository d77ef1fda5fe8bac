package bridge_test

import (
	"sync"
	"time"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/engine"
	"github.com/san-kum/rotorbridge/internal/msgs"
	"github.com/san-kum/rotorbridge/internal/queue"
	"github.com/san-kum/rotorbridge/internal/transport"
)

// fakeWorld is a hand-cranked clock with a single update-begin slot.
type fakeWorld struct {
	now          time.Duration
	update       func()
	connects     int
	disconnected int
}

func (w *fakeWorld) SimTime() time.Duration { return w.now }

func (w *fakeWorld) ConnectUpdateBegin(fn func()) *engine.Connection {
	w.update = fn
	w.connects++
	return &engine.Connection{}
}

func (w *fakeWorld) Disconnect(c *engine.Connection) {
	w.update = nil
	w.disconnected++
}

// stepTo sets the clock and fires the notification, as the engine would.
func (w *fakeWorld) stepTo(t time.Duration) {
	w.now = t
	if w.update != nil {
		w.update()
	}
}

// run advances n steps of size dt.
func (w *fakeWorld) run(n int, dt time.Duration) {
	for i := 0; i < n; i++ {
		w.stepTo(w.now + dt)
	}
}

type fakeLink struct {
	linear, angular dynamo.Vec3
	cog             dynamo.Vec3
	forces          []dynamo.Vec3
	torques         []dynamo.Vec3
}

func (l *fakeLink) RelativeLinearVel() dynamo.Vec3  { return l.linear }
func (l *fakeLink) RelativeAngularVel() dynamo.Vec3 { return l.angular }
func (l *fakeLink) AddRelativeForce(f dynamo.Vec3)  { l.forces = append(l.forces, f) }
func (l *fakeLink) AddRelativeTorque(t dynamo.Vec3) { l.torques = append(l.torques, t) }
func (l *fakeLink) CenterOfMass() dynamo.Vec3       { return l.cog }

type processCall struct {
	now     time.Duration
	window  queue.Window
	wait    time.Duration
	hasPump bool
}

// fakeModel records what the bridge asks of it and never blocks.
type fakeModel struct {
	mu       sync.Mutex
	on       bool
	voltage  float64
	resets   int
	// statusCalls counts full status snapshots built.
	statusCalls int
	received []msgs.MotorPWM
	calls    []processCall
	twists   []msgs.Twist
	dts      []float64
	wrench   msgs.Wrench
}

func newFakeModel() *fakeModel { return &fakeModel{on: true} }

func (m *fakeModel) SetInitialSupplyVoltage(v float64) { m.voltage = v }

func (m *fakeModel) AddCommand(cmd msgs.MotorPWM) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, cmd)
}

func (m *fakeModel) ProcessQueue(now time.Duration, w queue.Window, wait time.Duration, pump queue.Pump) bool {
	m.calls = append(m.calls, processCall{now: now, window: w, wait: wait, hasPump: pump != nil})
	return false
}

func (m *fakeModel) SetTwist(t msgs.Twist) { m.twists = append(m.twists, t) }
func (m *fakeModel) Update(dt float64)     { m.dts = append(m.dts, dt) }
func (m *fakeModel) Wrench() msgs.Wrench   { return m.wrench }

func (m *fakeModel) On() bool { return m.on }

func (m *fakeModel) MotorStatus() msgs.MotorStatus {
	m.statusCalls++
	return msgs.MotorStatus{On: m.on, Voltage: make([]float64, msgs.NumMotors)}
}

func (m *fakeModel) Supply() msgs.Supply {
	return msgs.Supply{Voltage: []float64{m.voltage}}
}

func (m *fakeModel) Reset() { m.resets++ }

func (m *fakeModel) commands() []msgs.MotorPWM {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]msgs.MotorPWM(nil), m.received...)
}

// station listens to the bridge's telemetry on its own node.
type station struct {
	node     *transport.Node
	triggers []msgs.Clock
	wrenches []msgs.Wrench
	statuses []msgs.MotorStatus
	supplies []msgs.Supply
}

func newStation(bus *transport.Bus, ns string) *station {
	s := &station{node: transport.NewNode(bus, ns, nil)}
	must(transport.Subscribe(s.node, "quadro/trigger", func(m msgs.Clock) { s.triggers = append(s.triggers, m) }))
	must(transport.Subscribe(s.node, "wrench_out", func(m msgs.Wrench) { s.wrenches = append(s.wrenches, m) }))
	must(transport.Subscribe(s.node, "motor_status", func(m msgs.MotorStatus) { s.statuses = append(s.statuses, m) }))
	must(transport.Subscribe(s.node, "supply", func(m msgs.Supply) { s.supplies = append(s.supplies, m) }))
	return s
}

func (s *station) collect() { s.node.Callbacks().CallAvailable(0) }

func must(_ *transport.Subscriber, err error) {
	if err != nil {
		panic(err)
	}
}
