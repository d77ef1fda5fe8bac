package controllers

import "github.com/san-kum/rotorbridge/internal/dynamo"

// LQR is a fixed-gain state feedback u = -K (x - Target).
type LQR struct {
	K      [][]float64
	Target dynamo.State
}

func NewLQR(k [][]float64, target dynamo.State) *LQR {
	return &LQR{K: k, Target: target}
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, len(l.K))

	for i := range u {
		for j := range x {
			if j >= len(l.K[i]) {
				break
			}
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			u[i] -= l.K[i][j] * (x[j] - target)
		}
	}

	return u
}

// NewAttitudeLQR levels the airframe. State is roll, pitch, roll rate,
// pitch rate; output is roll and pitch differential duty in PWM counts.
func NewAttitudeLQR() *LQR {
	k := [][]float64{
		{60.0, 0, 12.0, 0},
		{0, 60.0, 0, 12.0},
	}
	return NewLQR(k, dynamo.State{0, 0, 0, 0})
}
