package controllers

import (
	"math"

	"github.com/san-kum/rotorbridge/internal/msgs"
)

// Mix converts a collective duty plus roll, pitch and yaw differentials into
// per-motor PWM for the front, right, back, left layout. Positive roll
// raises the left rotor, positive pitch the back rotor and positive yaw the
// front/back pair.
func Mix(collective, roll, pitch, yaw float64) []uint8 {
	duty := [msgs.NumMotors]float64{
		collective - pitch + yaw,
		collective - roll - yaw,
		collective + pitch + yaw,
		collective + roll - yaw,
	}
	out := make([]uint8, msgs.NumMotors)
	for i, d := range duty {
		out[i] = uint8(math.Round(clamp(d, 0, 255)))
	}
	return out
}
