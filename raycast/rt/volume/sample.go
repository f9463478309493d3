package volume

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Sample reads the field at normalised texture coordinate tex. Coordinates
// outside [0,1] clamp to the edge voxels. NaN samples propagate.
func (f *ScalarField) Sample(tex mgl32.Vec3, interp Interpolation) float32 {
	if interp == InterpNearest {
		return f.SampleNearest(tex)
	}
	return f.SampleLinear(tex)
}

func (f *ScalarField) SampleNearest(tex mgl32.Vec3) float32 {
	var idx [3]int
	for a := 0; a < 3; a++ {
		idx[a] = int(math32.Floor(tex[a] * float32(f.Shape[a])))
	}
	return f.At(idx[0], idx[1], idx[2])
}

// SampleLinear interpolates between the eight voxels around tex.
func (f *ScalarField) SampleLinear(tex mgl32.Vec3) float32 {
	var i0 [3]int
	var w [3]float32
	for a := 0; a < 3; a++ {
		v := tex[a]*float32(f.Shape[a]) - 0.5
		fl := math32.Floor(v)
		i0[a] = int(fl)
		w[a] = v - fl
	}

	var c [2][2][2]float32
	for dz := 0; dz < 2; dz++ {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				c[dz][dy][dx] = f.At(i0[0]+dx, i0[1]+dy, i0[2]+dz)
			}
		}
	}

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	c00 := lerp(c[0][0][0], c[0][0][1], w[0])
	c10 := lerp(c[0][1][0], c[0][1][1], w[0])
	c01 := lerp(c[1][0][0], c[1][0][1], w[0])
	c11 := lerp(c[1][1][0], c[1][1][1], w[0])
	c0 := lerp(c00, c10, w[1])
	c1 := lerp(c01, c11, w[1])
	return lerp(c0, c1, w[2])
}
