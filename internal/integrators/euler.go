package integrators

import "github.com/san-kum/rotorbridge/internal/dynamo"

// Euler is the explicit first-order stepper; cheap, used for stiff-free
// motor dynamics when the step size is small.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	next := make(dynamo.State, len(x))
	for i := range x {
		next[i] = x[i] + dt*dx[i]
	}
	return next
}
