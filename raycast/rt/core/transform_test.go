package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestTransform_VoxelToWorld(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{3, -2, 5}
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	tr.Scale = mgl32.Vec3{2, 1, 0.5}

	// Scale first, then rotate X onto Y, then translate.
	w := mgl32.TransformCoordinate(mgl32.Vec3{1, 2, 4}, tr.VoxelToWorld())
	assert.True(t, w.ApproxEqualThreshold(mgl32.Vec3{1, 0, 7}, 1e-5), "got %v", w)

	m := tr.VoxelToWorld().Mul4(tr.VoxelToWorld().Inv())
	assert.True(t, m.ApproxEqualThreshold(mgl32.Ident4(), 1e-5), "got %v", m)
}

func TestTexToVoxelMatrix_VoxelCentres(t *testing.T) {
	shape := [3]int{4, 2, 1}
	m := TexToVoxelMatrix(shape)

	centre0 := mgl32.TransformCoordinate(mgl32.Vec3{0.125, 0.25, 0.5}, m)
	assert.True(t, centre0.ApproxEqualThreshold(mgl32.Vec3{0, 0, 0}, 1e-6), "got %v", centre0)

	last := mgl32.TransformCoordinate(mgl32.Vec3{0.875, 0.75, 0.5}, m)
	assert.True(t, last.ApproxEqualThreshold(mgl32.Vec3{3, 1, 0}, 1e-6), "got %v", last)

	// Agrees with the vector form used by the sampler.
	tex := mgl32.Vec3{0.3, 0.6, 0.9}
	assert.True(t, mgl32.TransformCoordinate(tex, m).ApproxEqualThreshold(TexToVoxel(tex, shape), 1e-6))
}

func TestTransformAABB(t *testing.T) {
	box := TransformAABB(mgl32.Scale3D(2, 3, 4), mgl32.Vec3{-1, 0, 1}, mgl32.Vec3{1, 1, 2})
	assert.Equal(t, mgl32.Vec3{-2, 0, 4}, box[0])
	assert.Equal(t, mgl32.Vec3{2, 3, 8}, box[1])
}
