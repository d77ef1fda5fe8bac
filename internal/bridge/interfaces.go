package bridge

import (
	"time"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/engine"
	"github.com/san-kum/rotorbridge/internal/msgs"
	"github.com/san-kum/rotorbridge/internal/queue"
)

// World is the simulation clock and step notification the bridge hooks.
type World interface {
	SimTime() time.Duration
	ConnectUpdateBegin(fn func()) *engine.Connection
	Disconnect(c *engine.Connection)
}

// resetNotifier is implemented by worlds that announce resets.
type resetNotifier interface {
	ConnectReset(fn func()) *engine.Connection
}

// Link is the rigid body the wrench is applied to. Velocities are in the
// body frame.
type Link interface {
	RelativeLinearVel() dynamo.Vec3
	RelativeAngularVel() dynamo.Vec3
	AddRelativeForce(f dynamo.Vec3)
	AddRelativeTorque(t dynamo.Vec3)
	CenterOfMass() dynamo.Vec3
}

// Propulsion is the actuator model driven by the bridge. AddCommand is
// called from transport callbacks and may run on another goroutine.
type Propulsion interface {
	SetInitialSupplyVoltage(v float64)
	AddCommand(cmd msgs.MotorPWM)
	ProcessQueue(now time.Duration, w queue.Window, wait time.Duration, pump queue.Pump) bool
	SetTwist(t msgs.Twist)
	Update(dt float64)
	Wrench() msgs.Wrench
	MotorStatus() msgs.MotorStatus
	// On reports whether the motors accept commands.
	On() bool
	Supply() msgs.Supply
	Reset()
}

// Step describes one processed simulation step.
type Step struct {
	Time    time.Duration
	Dt      time.Duration
	Trigger bool
	// Applied reports that at least one command was admitted this step.
	Applied bool
	Wrench  msgs.Wrench
	Status  msgs.MotorStatus
	Supply  msgs.Supply
}
