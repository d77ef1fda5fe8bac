package integrators

import "github.com/san-kum/rotorbridge/internal/dynamo"

// RK4 is the classic fourth-order Runge-Kutta stepper. It reuses its stage
// buffers between calls, so one RK4 must only serve one goroutine.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	probe          dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) grow(n int) {
	if len(r.k1) == n {
		return
	}
	r.k1 = make(dynamo.State, n)
	r.k2 = make(dynamo.State, n)
	r.k3 = make(dynamo.State, n)
	r.k4 = make(dynamo.State, n)
	r.probe = make(dynamo.State, n)
}

// stage evaluates dyn at x + h*k into dst.
func (r *RK4) stage(dst dynamo.State, dyn dynamo.System, x, k dynamo.State, u dynamo.Control, t, h float64) {
	for i := range x {
		r.probe[i] = x[i] + h*k[i]
	}
	copy(dst, dyn.Derive(r.probe, u, t))
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.grow(n)

	copy(r.k1, dyn.Derive(x, u, t))
	r.stage(r.k2, dyn, x, r.k1, u, t+dt/2, dt/2)
	r.stage(r.k3, dyn, x, r.k2, u, t+dt/2, dt/2)
	r.stage(r.k4, dyn, x, r.k3, u, t+dt, dt)

	next := make(dynamo.State, n)
	w := dt / 6.0
	for i := 0; i < n; i++ {
		next[i] = x[i] + w*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return next
}
