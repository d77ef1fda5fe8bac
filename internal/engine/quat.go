package engine

import (
	"math"

	"github.com/san-kum/rotorbridge/internal/dynamo"
)

// Quat is a unit quaternion (W, X, Y, Z) rotating body vectors into the
// world frame.
type Quat struct {
	W, X, Y, Z float64
}

var identity = Quat{W: 1}

// QuatFromEuler builds a rotation from roll, pitch, yaw (radians, ZYX).
func QuatFromEuler(roll, pitch, yaw float64) Quat {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return Quat{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return identity
	}
	return Quat{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

func (q Quat) conj() Quat { return Quat{q.W, -q.X, -q.Y, -q.Z} }

func (q Quat) mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Rotate maps a body-frame vector into the world frame.
func (q Quat) Rotate(v dynamo.Vec3) dynamo.Vec3 {
	r := q.mul(Quat{0, v.X, v.Y, v.Z}).mul(q.conj())
	return dynamo.Vec3{X: r.X, Y: r.Y, Z: r.Z}
}

// RotateInv maps a world-frame vector into the body frame.
func (q Quat) RotateInv(v dynamo.Vec3) dynamo.Vec3 {
	return q.conj().Rotate(v)
}

// Euler returns roll, pitch, yaw.
func (q Quat) Euler() (roll, pitch, yaw float64) {
	roll = math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))
	s := 2 * (q.W*q.Y - q.Z*q.X)
	pitch = math.Asin(math.Max(-1, math.Min(1, s)))
	yaw = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return
}
