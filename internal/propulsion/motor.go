package propulsion

import (
	"math"

	"github.com/san-kum/rotorbridge/internal/dynamo"
	"github.com/san-kum/rotorbridge/internal/msgs"
)

// motors is the rotor-speed ODE: state is the four rotor speeds, control the
// four armature voltages.
type motors struct {
	p Parameters
}

func (m *motors) StateDim() int   { return msgs.NumMotors }
func (m *motors) ControlDim() int { return msgs.NumMotors }

func (m *motors) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, len(x))
	for i, w := range x {
		w = math.Max(0, w)
		torque := m.p.Psi * m.current(u[i], w)
		dx[i] = (torque - m.p.CQ*w*w) / m.p.JM
	}
	return dx
}

// current drawn at voltage v and speed w; the ESC does not regenerate.
func (m *motors) current(v, w float64) float64 {
	return math.Max(0, (v-m.p.Psi*w)/m.p.RA)
}

func (m *motors) thrust(w, inflow float64) float64 {
	t := m.p.CT0s*w*w + m.p.CT1s*inflow*w + m.p.CT2s*inflow*inflow
	return math.Max(0, t)
}

// wrench sums rotor thrusts and drag torques about the body frame.
func (m *motors) wrench(w dynamo.State, inflow float64) msgs.Wrench {
	var t, q [msgs.NumMotors]float64
	total := 0.0
	for i := range t {
		t[i] = m.thrust(w[i], inflow)
		q[i] = m.p.CQ * w[i] * w[i]
		total += t[i]
	}
	return msgs.Wrench{
		Force: dynamo.Vec3{Z: total},
		Torque: dynamo.Vec3{
			X: m.p.LM * (t[3] - t[1]),
			Y: m.p.LM * (t[2] - t[0]),
			Z: q[0] - q[1] + q[2] - q[3],
		},
	}
}
