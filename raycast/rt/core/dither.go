package core

import (
	"github.com/chewxy/math32"
)

// DitherConstants parameterise the positional hash frac(sin(x*A + y*B) * C).
type DitherConstants struct {
	A, B, C float32
}

// DefaultDither holds the classic screen-space hash constants.
var DefaultDither = DitherConstants{A: 12.9898, B: 78.233, C: 43758.5453}

// Dither returns a pseudo-random value in [0,1) derived only from the
// screen-space position (x, y).
func Dither(x, y float32) float32 {
	return DefaultDither.At(x, y)
}

func (d DitherConstants) At(x, y float32) float32 {
	v := math32.Sin(x*d.A+y*d.B) * d.C
	f := v - math32.Floor(v)
	// frac can round up to exactly 1 for large negative v.
	if f >= 1 {
		f = 0
	}
	return f
}
