package propulsion

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is wrapped by Parameters.Validate.
var ErrInvalidParams = errors.New("propulsion: invalid parameters")

// Parameters describe one quadrotor's motors, rotors and battery. Motor
// order is front, right, back, left.
type Parameters struct {
	// Psi is the motor constant: back-EMF per rad/s and torque per amp.
	Psi float64 `yaml:"Psi" json:"psi"`
	// RA is the armature resistance in ohms.
	RA float64 `yaml:"R_A" json:"r_a"`
	// JM is the rotor + motor inertia in kg m^2.
	JM float64 `yaml:"J_M" json:"j_m"`
	// Thrust T = CT0s*w^2 + CT1s*v*w + CT2s*v^2 with v the body-z inflow.
	CT0s float64 `yaml:"CT0s" json:"ct0s"`
	CT1s float64 `yaml:"CT1s" json:"ct1s"`
	CT2s float64 `yaml:"CT2s" json:"ct2s"`
	// CQ is the rotor drag torque per (rad/s)^2.
	CQ float64 `yaml:"CQ" json:"cq"`
	// LM is the arm length in metres.
	LM float64 `yaml:"l_m" json:"l_m"`
	// Capacity is the battery capacity in Ah.
	Capacity float64 `yaml:"capacity" json:"capacity"`
	// RI is the battery internal resistance in ohms.
	RI float64 `yaml:"R_i" json:"r_i"`
	// RunningThreshold is the rotor speed (rad/s) above which a motor counts
	// as running.
	RunningThreshold float64 `yaml:"running_threshold" json:"running_threshold"`
	// Integrator names the stepper for motor dynamics (rk4, euler).
	Integrator string `yaml:"integrator" json:"integrator"`
}

// DefaultParameters returns values for a ~1.5 kg quadrotor on a 4S battery.
func DefaultParameters() Parameters {
	return Parameters{
		Psi:              0.0072,
		RA:               0.2,
		JM:               2.573e-5,
		CT0s:             1.5382e-5,
		CT1s:             -2.5224e-4,
		CT2s:             -1.3077e-2,
		CQ:               5.4e-7,
		LM:               0.275,
		Capacity:         5.0,
		RI:               0.02,
		RunningThreshold: 10.0,
		Integrator:       "rk4",
	}
}

func (p Parameters) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"Psi", p.Psi > 0},
		{"R_A", p.RA > 0},
		{"J_M", p.JM > 0},
		{"CT0s", p.CT0s > 0},
		{"CQ", p.CQ >= 0},
		{"l_m", p.LM > 0},
		{"capacity", p.Capacity > 0},
		{"R_i", p.RI >= 0},
		{"running_threshold", p.RunningThreshold >= 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s out of range", ErrInvalidParams, c.name)
		}
	}
	return nil
}
