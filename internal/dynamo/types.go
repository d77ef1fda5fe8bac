package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

type Controller interface {
	Compute(x State, t float64) Control
}

// Validate reports ErrInvalidState or ErrDimensionMismatch for x against dyn.
func Validate(dyn System, x State) error {
	if len(x) != dyn.StateDim() {
		return fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(x), dyn.StateDim())
	}
	if !x.IsValid() {
		return ErrInvalidState
	}
	return nil
}
