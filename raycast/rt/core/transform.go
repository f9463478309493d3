package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a similarity transform from a field's voxel grid into world
// space. Arbitrary affines (e.g. a NIfTI sform) bypass it and are stored on
// the field directly.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t *Transform) VoxelToWorld() mgl32.Mat4 {
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

// TexToVoxelMatrix maps normalised texture coordinates to voxel indices
// (voxel centres at (i+0.5)/shape).
func TexToVoxelMatrix(shape [3]int) mgl32.Mat4 {
	return mgl32.Translate3D(-0.5, -0.5, -0.5).Mul4(
		mgl32.Scale3D(float32(shape[0]), float32(shape[1]), float32(shape[2])))
}

// TransformAABB returns the axis-aligned bounds of the box [lo,hi] after m.
func TransformAABB(m mgl32.Mat4, lo, hi mgl32.Vec3) [2]mgl32.Vec3 {
	inf := float32(3.4e38)
	out := [2]mgl32.Vec3{{inf, inf, inf}, {-inf, -inf, -inf}}
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{lo[0], lo[1], lo[2]}
		if i&1 != 0 {
			c[0] = hi[0]
		}
		if i&2 != 0 {
			c[1] = hi[1]
		}
		if i&4 != 0 {
			c[2] = hi[2]
		}
		w := mgl32.TransformCoordinate(c, m)
		for a := 0; a < 3; a++ {
			if w[a] < out[0][a] {
				out[0][a] = w[a]
			}
			if w[a] > out[1][a] {
				out[1][a] = w[a]
			}
		}
	}
	return out
}
