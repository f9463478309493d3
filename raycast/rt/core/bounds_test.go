package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestInBounds_Tolerance(t *testing.T) {
	const s = 16
	shape := [3]int{s, s, s}

	tests := []struct {
		name   string
		coord  float32
		inside bool
	}{
		{"low edge", -0.50, true},
		{"high edge", s - 0.50, true},
		{"centre", s / 2, true},
		{"just below low tolerance", -0.52, false},
		{"just above high tolerance", s - 0.48, false},
	}

	for _, tc := range tests {
		for axis := 0; axis < 3; axis++ {
			c := mgl32.Vec3{s / 2, s / 2, s / 2}
			c[axis] = tc.coord
			got := InBounds(c, shape) >= 0
			assert.Equal(t, tc.inside, got, "%s on axis %d", tc.name, axis)
		}
	}
}

func TestInBounds_Degenerate2D(t *testing.T) {
	shape := [3]int{8, 8, 1}
	assert.GreaterOrEqual(t, InBounds(mgl32.Vec3{3, 3, 0}, shape), float32(0))
	assert.Less(t, InBounds(mgl32.Vec3{3, 3, 0.6}, shape), float32(0))
}

func TestTexVoxelRoundTrip(t *testing.T) {
	shape := [3]int{4, 8, 16}
	v := mgl32.Vec3{1, 2, 3}
	got := TexToVoxel(VoxelToTex(v, shape), shape)
	assert.InDelta(t, v[0], got[0], 1e-5)
	assert.InDelta(t, v[1], got[1], 1e-5)
	assert.InDelta(t, v[2], got[2], 1e-5)

	// Voxel 0 is centred half a voxel into the texture.
	assert.InDelta(t, 0.125, VoxelToTex(mgl32.Vec3{}, shape)[0], 1e-6)
}
