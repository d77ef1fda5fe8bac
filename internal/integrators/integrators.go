package integrators

import (
	"fmt"

	"github.com/san-kum/rotorbridge/internal/dynamo"
)

// New returns a fresh integrator by name. The empty name selects rk4.
func New(name string) (dynamo.Integrator, error) {
	switch name {
	case "", "rk4":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
}

// Names lists the integrators New accepts.
func Names() []string {
	return []string{"rk4", "euler"}
}
