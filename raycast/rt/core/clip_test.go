package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// plane returns a plane that is active at the origin when on is true.
func plane(on bool) ClipPlane {
	if on {
		return ClipPlane{1, 0, 0, 1} // x + 1 >= 0
	}
	return ClipPlane{1, 0, 0, -1} // x - 1 < 0
}

func TestClipEvaluator_TruthTable(t *testing.T) {
	origin := mgl32.Vec3{}

	for mask := 0; mask < 8; mask++ {
		planes := []ClipPlane{plane(mask&1 != 0), plane(mask&2 != 0), plane(mask&4 != 0)}
		active := 0
		for i := 0; i < 3; i++ {
			if mask&(1<<i) != 0 {
				active++
			}
		}

		tests := []struct {
			mode   ClipMode
			reject bool
		}{
			{ClipIntersection, active == 3},
			{ClipUnion, active > 0},
			{ClipComplement, active == 0},
		}
		for _, tc := range tests {
			e := ClipEvaluator{Planes: planes, Mode: tc.mode}
			assert.Equal(t, tc.reject, e.Reject(origin), "mask %03b mode %v", mask, tc.mode)
		}
	}
}

func TestClipEvaluator_NoPlanes(t *testing.T) {
	for _, mode := range []ClipMode{ClipIntersection, ClipUnion, ClipComplement} {
		e := ClipEvaluator{Mode: mode}
		assert.False(t, e.Reject(mgl32.Vec3{0.3, 0.2, 0.1}), "mode %v", mode)
	}
}

func TestClipPlane_ActiveOnPlane(t *testing.T) {
	p := PlaneEquation(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{0, 0, 1})
	assert.True(t, p.Active(mgl32.Vec3{0, 0, 0.5}), "distance exactly 0 counts as active")
	assert.True(t, p.Active(mgl32.Vec3{0, 0, 0.9}))
	assert.False(t, p.Active(mgl32.Vec3{0, 0, 0.1}))
}

func TestClipPlane_Transform(t *testing.T) {
	p := PlaneEquation(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 0, 0})
	m := mgl32.Translate3D(3, 0, 0).Mul4(mgl32.Scale3D(2, 2, 2))
	q := p.Transform(m)

	for _, x := range []float32{-2, 0.5, 1.5, 4} {
		pt := mgl32.Vec3{x, 0.2, -0.7}
		moved := mgl32.TransformCoordinate(pt, m)
		assert.Equal(t, p.Active(pt), q.Active(moved), "x=%v", x)
	}
}

func TestClipPlaneFromAngles(t *testing.T) {
	lo, hi := mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}

	// Default plane faces -Z through the centre.
	p := ClipPlaneFromAngles(50, 0, 0, lo, hi)
	assert.InDelta(t, 0, p.Distance(mgl32.Vec3{0.5, 0.5, 0.5}), 1e-6)
	assert.True(t, p.Active(mgl32.Vec3{0.5, 0.5, 0.2}))
	assert.False(t, p.Active(mgl32.Vec3{0.5, 0.5, 0.8}))

	// Moving the position shifts the plane along its normal.
	p = ClipPlaneFromAngles(75, 0, 0, lo, hi)
	assert.InDelta(t, 0, p.Distance(mgl32.Vec3{0.5, 0.5, 0.25}), 1e-6)

	// 90 degrees of inclination tilts the normal into the XY plane.
	p = ClipPlaneFromAngles(50, 0, 90, lo, hi)
	assert.InDelta(t, 0, p[2], 1e-6)
}

func TestParseClipMode(t *testing.T) {
	for _, m := range []ClipMode{ClipIntersection, ClipUnion, ClipComplement} {
		got, err := ParseClipMode(m.String())
		assert.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseClipMode("xor")
	assert.Error(t, err)
}
