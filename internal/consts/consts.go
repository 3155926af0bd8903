package consts

import "math"

const (
	Freq = 60.0  // system frequency (Hz)
	Sb   = 100.0 // system power base (MVA)
)

// Wb is the system base angular speed (rad/s).
var Wb = 2 * math.Pi * Freq
