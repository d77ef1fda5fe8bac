package controllers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/msgs"
	"github.com/san-kum/rotorbridge/internal/transport"
)

// Observation is a snapshot of the vehicle taken on the simulation
// goroutine.
type Observation struct {
	Time      time.Duration
	Altitude  float64
	Climb     float64
	Roll      float64
	Pitch     float64
	RollRate  float64
	PitchRate float64
}

// Sensor returns the most recent observation. It must be safe to call from
// the controller goroutine.
type Sensor func() Observation

// NodeConfig names the topics and the duty the node adds corrections to.
type NodeConfig struct {
	TriggerTopic string
	CommandTopic string
	HoverPWM     float64
	// FreeRunRate is the wall-clock rate, in Hz, used when there is no
	// trigger topic. Such commands are sent unstamped.
	FreeRunRate float64
}

// Node is an external flight controller living on its own transport node.
// With a trigger topic it answers every trigger with a command stamped at
// the trigger time; without one it publishes on a wall-clock ticker.
type Node struct {
	node     *transport.Node
	pub      *transport.Publisher
	cfg      NodeConfig
	altitude dynamo.Controller
	attitude dynamo.Controller
	sense    Sensor
	log      *zap.Logger

	mu   sync.Mutex
	sent int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type NodeOption func(*Node)

func WithLogger(l *zap.Logger) NodeOption {
	return func(n *Node) {
		if l != nil {
			n.log = l
		}
	}
}

// WithAttitude adds a levelling controller fed roll, pitch and their rates.
func WithAttitude(c dynamo.Controller) NodeOption {
	return func(n *Node) { n.attitude = c }
}

// NewNode wires altitude into a transport node in namespace.
func NewNode(bus *transport.Bus, namespace string, cfg NodeConfig, altitude dynamo.Controller, sense Sensor, opts ...NodeOption) (*Node, error) {
	n := &Node{
		node:     transport.NewNode(bus, namespace, nil),
		cfg:      cfg,
		altitude: altitude,
		sense:    sense,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.Named("controller")

	pub, err := n.node.Advertise(cfg.CommandTopic, false)
	if err != nil {
		n.node.Shutdown()
		return nil, err
	}
	n.pub = pub

	if cfg.TriggerTopic != "" {
		if _, err := transport.Subscribe(n.node, cfg.TriggerTopic, n.onTrigger); err != nil {
			n.node.Shutdown()
			return nil, err
		}
	}
	return n, nil
}

func (n *Node) onTrigger(clk msgs.Clock) {
	n.publish(clk.Stamp, n.sense())
}

func (n *Node) publish(stamp time.Duration, obs Observation) {
	t := obs.Time.Seconds()
	collective := n.cfg.HoverPWM
	if u := n.altitude.Compute(dynamo.State{obs.Altitude, obs.Climb}, t); len(u) > 0 {
		collective += u[0]
	}
	var roll, pitch float64
	if n.attitude != nil {
		u := n.attitude.Compute(dynamo.State{obs.Roll, obs.Pitch, obs.RollRate, obs.PitchRate}, t)
		if len(u) >= 2 {
			roll, pitch = u[0], u[1]
		}
	}

	cmd := msgs.MotorPWM{Stamp: stamp, PWM: Mix(collective, roll, pitch, 0)}
	if err := n.pub.Publish(cmd); err != nil {
		n.log.Debug("command not sent", zap.Error(err))
		return
	}
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
}

// Start runs the node's callback loop on its own goroutine until ctx is
// done or Close is called.
func (n *Node) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if n.cfg.TriggerTopic == "" {
			n.freeRun(ctx)
			return
		}
		for ctx.Err() == nil && n.node.Ok() {
			n.node.Callbacks().CallAvailable(10 * time.Millisecond)
		}
	}()
}

func (n *Node) freeRun(ctx context.Context) {
	rate := n.cfg.FreeRunRate
	if rate <= 0 {
		rate = 100
	}
	tick := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if !n.node.Ok() {
				return
			}
			n.publish(0, n.sense())
		}
	}
}

// Sent is the number of commands published so far.
func (n *Node) Sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

// Close stops the loop and shuts the transport node down.
func (n *Node) Close() {
	if n.cancel != nil {
		n.cancel()
	}
	n.node.Shutdown()
	n.wg.Wait()
}
