// Package msgs defines the values exchanged over the transport.
//
// Stamps are simulation time offsets from the world epoch. A zero stamp on a
// command means "unstamped".
package msgs

import (
	"time"

	"github.com/san-kum/rotorbridge/internal/dynamo"
)

// NumMotors is the number of rotors the propulsion model drives.
const NumMotors = 4

// Clock is the trigger message sent on every control timer fire.
type Clock struct {
	Stamp time.Duration `json:"stamp"`
}

// MotorPWM is an actuation command: one duty value per motor, 255 = full
// supply voltage.
type MotorPWM struct {
	Stamp time.Duration `json:"stamp"`
	PWM   []uint8       `json:"pwm"`
}

// Timestamp implements queue.Stamped.
func (m MotorPWM) Timestamp() time.Duration { return m.Stamp }

// Twist carries body-frame linear and angular velocity.
type Twist struct {
	Linear  dynamo.Vec3 `json:"linear"`
	Angular dynamo.Vec3 `json:"angular"`
}

// Wrench is a force/torque pair about the body reference frame.
type Wrench struct {
	Force  dynamo.Vec3 `json:"force"`
	Torque dynamo.Vec3 `json:"torque"`
}

// Supply reports the battery state.
type Supply struct {
	Voltage []float64 `json:"voltage"`
	Current []float64 `json:"current"`
	Charge  float64   `json:"charge"`
}

// MotorStatus reports per-motor electrical and mechanical state.
type MotorStatus struct {
	Stamp     time.Duration `json:"stamp"`
	On        bool          `json:"on"`
	Running   bool          `json:"running"`
	Voltage   []float64     `json:"voltage"`
	Frequency []float64     `json:"frequency"`
	Current   []float64     `json:"current"`
}

// Clone returns a deep copy so published values never alias model state.
func (s MotorStatus) Clone() MotorStatus {
	c := s
	c.Voltage = append([]float64(nil), s.Voltage...)
	c.Frequency = append([]float64(nil), s.Frequency...)
	c.Current = append([]float64(nil), s.Current...)
	return c
}

// Clone returns a deep copy.
func (s Supply) Clone() Supply {
	c := s
	c.Voltage = append([]float64(nil), s.Voltage...)
	c.Current = append([]float64(nil), s.Current...)
	return c
}
