package engine

import (
	"fmt"

	"github.com/san-kum/rotorbridge/internal/dynamo"
)

// State layout of a RigidBody.
const (
	idxPos  = 0  // world position of the centre of mass (3)
	idxVel  = 3  // world linear velocity (3)
	idxQuat = 6  // attitude W, X, Y, Z (4)
	idxRate = 10 // body angular velocity (3)
	bodyDim = 13
)

// RigidBody is a single 6-DoF link. Forces added through AddRelativeForce
// and AddRelativeTorque act at the centre of mass in the body frame and are
// cleared after every world step.
type RigidBody struct {
	Name    string
	Mass    float64
	Inertia dynamo.Vec3 // principal moments about the centre of mass
	CoG     dynamo.Vec3 // centre of mass relative to the link frame

	gravity dynamo.Vec3
	ground  bool
	x, x0   dynamo.State
	force   dynamo.Vec3
	torque  dynamo.Vec3
}

// NewRigidBody creates a body at rest at the origin with identity attitude.
func NewRigidBody(name string, mass float64, inertia dynamo.Vec3) (*RigidBody, error) {
	if mass <= 0 || inertia.X <= 0 || inertia.Y <= 0 || inertia.Z <= 0 {
		return nil, fmt.Errorf("%w: body %q needs positive mass and inertia", dynamo.ErrParameterBounds, name)
	}
	b := &RigidBody{Name: name, Mass: mass, Inertia: inertia, ground: true}
	b.x0 = make(dynamo.State, bodyDim)
	b.x0[idxQuat] = 1
	b.x = b.x0.Clone()
	return b, nil
}

// SetPose sets the initial and current pose.
func (b *RigidBody) SetPose(pos dynamo.Vec3, att Quat) {
	att = att.Normalize()
	b.x0 = make(dynamo.State, bodyDim)
	b.x0[idxPos], b.x0[idxPos+1], b.x0[idxPos+2] = pos.X, pos.Y, pos.Z
	b.x0[idxQuat], b.x0[idxQuat+1], b.x0[idxQuat+2], b.x0[idxQuat+3] = att.W, att.X, att.Y, att.Z
	b.x = b.x0.Clone()
}

// SetGround enables or disables the z = 0 ground plane for this body.
func (b *RigidBody) SetGround(on bool) { b.ground = on }

func (b *RigidBody) StateDim() int   { return bodyDim }
func (b *RigidBody) ControlDim() int { return 6 }

// Derive expects u = body-frame force (3) then torque about the centre of
// mass (3).
func (b *RigidBody) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	q := quatAt(x)
	w := vecAt(x, idxRate)
	f := dynamo.Vec3{X: u[0], Y: u[1], Z: u[2]}
	tau := dynamo.Vec3{X: u[3], Y: u[4], Z: u[5]}

	acc := q.Rotate(f).Scale(1 / b.Mass).Add(b.gravity)
	qd := q.mul(Quat{0, w.X, w.Y, w.Z})

	iw := dynamo.Vec3{X: b.Inertia.X * w.X, Y: b.Inertia.Y * w.Y, Z: b.Inertia.Z * w.Z}
	net := tau.Sub(w.Cross(iw))

	dx := make(dynamo.State, bodyDim)
	dx[idxPos], dx[idxPos+1], dx[idxPos+2] = x[idxVel], x[idxVel+1], x[idxVel+2]
	dx[idxVel], dx[idxVel+1], dx[idxVel+2] = acc.X, acc.Y, acc.Z
	dx[idxQuat], dx[idxQuat+1], dx[idxQuat+2], dx[idxQuat+3] = qd.W/2, qd.X/2, qd.Y/2, qd.Z/2
	dx[idxRate] = net.X / b.Inertia.X
	dx[idxRate+1] = net.Y / b.Inertia.Y
	dx[idxRate+2] = net.Z / b.Inertia.Z
	return dx
}

func (b *RigidBody) step(integ dynamo.Integrator, t, dt float64) error {
	u := dynamo.Control{b.force.X, b.force.Y, b.force.Z, b.torque.X, b.torque.Y, b.torque.Z}
	next := integ.Step(b, b.x, u, t, dt)
	b.force, b.torque = dynamo.Vec3{}, dynamo.Vec3{}
	if err := dynamo.Validate(b, next); err != nil {
		return &dynamo.StepError{Time: t, Wrapped: fmt.Errorf("body %q: %w", b.Name, err)}
	}

	q := quatAt(next).Normalize()
	next[idxQuat], next[idxQuat+1], next[idxQuat+2], next[idxQuat+3] = q.W, q.X, q.Y, q.Z

	if b.ground && next[idxPos+2] <= 0 && next[idxVel+2] <= 0 {
		// resting contact: no sinking, no sliding, no spinning
		next[idxPos+2] = 0
		for i := 0; i < 3; i++ {
			next[idxVel+i] = 0
			next[idxRate+i] = 0
		}
	}
	b.x = next
	return nil
}

func (b *RigidBody) reset() {
	b.x = b.x0.Clone()
	b.force, b.torque = dynamo.Vec3{}, dynamo.Vec3{}
}

func (b *RigidBody) AddRelativeForce(f dynamo.Vec3)  { b.force = b.force.Add(f) }
func (b *RigidBody) AddRelativeTorque(t dynamo.Vec3) { b.torque = b.torque.Add(t) }

// PendingWrench returns the force and torque accumulated for the next step.
func (b *RigidBody) PendingWrench() (force, torque dynamo.Vec3) { return b.force, b.torque }

func (b *RigidBody) CenterOfMass() dynamo.Vec3 { return b.CoG }

func (b *RigidBody) Position() dynamo.Vec3      { return vecAt(b.x, idxPos) }
func (b *RigidBody) Orientation() Quat          { return quatAt(b.x) }
func (b *RigidBody) WorldLinearVel() dynamo.Vec3 { return vecAt(b.x, idxVel) }

// RelativeLinearVel is the linear velocity in the body frame.
func (b *RigidBody) RelativeLinearVel() dynamo.Vec3 {
	return quatAt(b.x).RotateInv(vecAt(b.x, idxVel))
}

// RelativeAngularVel is the angular velocity in the body frame.
func (b *RigidBody) RelativeAngularVel() dynamo.Vec3 { return vecAt(b.x, idxRate) }

// State returns a copy of the integrated state.
func (b *RigidBody) State() dynamo.State { return b.x.Clone() }

func vecAt(x dynamo.State, i int) dynamo.Vec3 {
	return dynamo.Vec3{X: x[i], Y: x[i+1], Z: x[i+2]}
}

func quatAt(x dynamo.State) Quat {
	return Quat{x[idxQuat], x[idxQuat+1], x[idxQuat+2], x[idxQuat+3]}
}
