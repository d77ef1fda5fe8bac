package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/integrators"
)

// StandardGravity is the default gravity magnitude in m/s².
const StandardGravity = 9.81

// Connection identifies a registered world callback.
type Connection struct {
	id    uint64
	reset bool
}

type hook struct {
	id uint64
	fn func()
}

// World owns simulation time and a set of rigid bodies. Step advances time,
// fires the update-begin callbacks and then integrates every body.
type World struct {
	step    time.Duration
	gravity dynamo.Vec3
	integ   dynamo.Integrator

	simTime    atomic.Int64
	iterations atomic.Uint64

	stepMu sync.Mutex
	bodies []*RigidBody

	hookMu  sync.RWMutex
	nextID  uint64
	onBegin []hook
	onReset []hook
}

type WorldOption func(*World)

// WithGravity overrides the default -Z gravity.
func WithGravity(g dynamo.Vec3) WorldOption {
	return func(w *World) { w.gravity = g }
}

// WithIntegrator replaces the default RK4 body integrator.
func WithIntegrator(integ dynamo.Integrator) WorldOption {
	return func(w *World) {
		if integ != nil {
			w.integ = integ
		}
	}
}

// NewWorld creates a world with a fixed step size.
func NewWorld(step time.Duration, opts ...WorldOption) (*World, error) {
	if step <= 0 {
		return nil, errors.New("engine: step size must be positive")
	}
	w := &World{
		step:    step,
		gravity: dynamo.Vec3{Z: -StandardGravity},
		integ:   integrators.NewRK4(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *World) SimTime() time.Duration  { return time.Duration(w.simTime.Load()) }
func (w *World) StepSize() time.Duration { return w.step }
func (w *World) Iterations() uint64      { return w.iterations.Load() }
func (w *World) Gravity() dynamo.Vec3    { return w.gravity }

// AddBody registers b with the world. Its gravity follows the world's.
func (w *World) AddBody(b *RigidBody) {
	w.stepMu.Lock()
	defer w.stepMu.Unlock()
	b.gravity = w.gravity
	w.bodies = append(w.bodies, b)
}

// Body looks up a body by name.
func (w *World) Body(name string) (*RigidBody, bool) {
	w.stepMu.Lock()
	defer w.stepMu.Unlock()
	for _, b := range w.bodies {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// ConnectUpdateBegin registers fn to run at the start of every step, after
// simulation time has advanced.
func (w *World) ConnectUpdateBegin(fn func()) *Connection {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.nextID++
	w.onBegin = append(w.onBegin, hook{id: w.nextID, fn: fn})
	return &Connection{id: w.nextID}
}

// ConnectReset registers fn to run whenever the world is reset.
func (w *World) ConnectReset(fn func()) *Connection {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.nextID++
	w.onReset = append(w.onReset, hook{id: w.nextID, fn: fn})
	return &Connection{id: w.nextID, reset: true}
}

// Disconnect removes a callback. It blocks while callbacks are running, so
// once it returns the callback will not be invoked again.
func (w *World) Disconnect(c *Connection) {
	if c == nil {
		return
	}
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	if c.reset {
		w.onReset = without(w.onReset, c.id)
	} else {
		w.onBegin = without(w.onBegin, c.id)
	}
}

func without(hooks []hook, id uint64) []hook {
	out := hooks[:0]
	for _, h := range hooks {
		if h.id != id {
			out = append(out, h)
		}
	}
	return out
}

// Step advances the world by one step.
func (w *World) Step() error {
	w.stepMu.Lock()
	defer w.stepMu.Unlock()

	now := w.simTime.Add(int64(w.step))
	w.iterations.Add(1)

	w.hookMu.RLock()
	for _, h := range w.onBegin {
		h.fn()
	}
	w.hookMu.RUnlock()

	t := (time.Duration(now) - w.step).Seconds()
	dt := w.step.Seconds()
	for _, b := range w.bodies {
		if err := b.step(w.integ, t, dt); err != nil {
			if se, ok := err.(*dynamo.StepError); ok {
				se.Step = int(w.iterations.Load())
			}
			return err
		}
	}
	return nil
}

// Run steps until duration of simulation time has elapsed or ctx is done.
// A zero duration runs until ctx is cancelled.
func (w *World) Run(ctx context.Context, duration time.Duration) error {
	for duration <= 0 || w.SimTime() < duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := w.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Reset rewinds time to zero, restores every body to its initial pose and
// then runs the reset callbacks.
func (w *World) Reset() {
	w.stepMu.Lock()
	w.simTime.Store(0)
	w.iterations.Store(0)
	for _, b := range w.bodies {
		b.reset()
	}
	w.stepMu.Unlock()

	w.hookMu.RLock()
	defer w.hookMu.RUnlock()
	for _, h := range w.onReset {
		h.fn()
	}
}
