package volume

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampField() *ScalarField {
	f := NewScalarField([3]int{4, 2, 2})
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 4; x++ {
				f.Set(x, y, z, float32(x))
			}
		}
	}
	return f
}

func TestSampleNearest(t *testing.T) {
	f := rampField()
	tests := []struct {
		u    float32
		want float32
	}{
		{0.0, 0},
		{0.124, 0},
		{0.26, 1},
		{0.99, 3},
		{1.5, 3},
		{-0.5, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, f.SampleNearest(mgl32.Vec3{tc.u, 0.5, 0.5}), "u=%v", tc.u)
	}
}

func TestSampleLinear(t *testing.T) {
	f := rampField()

	// Voxel centres reproduce the stored values.
	for x := 0; x < 4; x++ {
		u := (float32(x) + 0.5) / 4
		assert.InDelta(t, float32(x), f.SampleLinear(mgl32.Vec3{u, 0.3, 0.7}), 1e-6)
	}
	// Halfway between voxel 1 and 2.
	assert.InDelta(t, 1.5, f.SampleLinear(mgl32.Vec3{0.5, 0.5, 0.5}), 1e-6)
	// Clamped at the edges.
	assert.InDelta(t, 0, f.SampleLinear(mgl32.Vec3{0, 0.5, 0.5}), 1e-6)
	assert.InDelta(t, 3, f.SampleLinear(mgl32.Vec3{1, 0.5, 0.5}), 1e-6)
}

func TestSampleLinear_NaNPropagates(t *testing.T) {
	f := NewScalarField([3]int{2, 2, 2})
	f.Set(0, 0, 0, float32(math.NaN()))
	v := f.SampleLinear(mgl32.Vec3{0.5, 0.5, 0.5})
	assert.True(t, math.IsNaN(float64(v)))
}

func TestScalarField_Validate(t *testing.T) {
	require.NoError(t, NewScalarField([3]int{3, 3, 1}).Validate())

	f := NewScalarField([3]int{3, 3, 3})
	f.Data = f.Data[:5]
	assert.ErrorIs(t, f.Validate(), ErrInvalidField)

	assert.ErrorIs(t, (&ScalarField{Shape: [3]int{0, 1, 1}}).Validate(), ErrInvalidField)
}

func TestScalarField_TexToWorld(t *testing.T) {
	f := NewScalarField([3]int{10, 10, 10})
	f.VoxelToWorld = mgl32.Scale3D(2, 2, 2)

	// The first voxel centre sits at texture coordinate 0.05.
	p := mgl32.TransformCoordinate(mgl32.Vec3{0.05, 0.05, 0.05}, f.TexToWorld())
	assert.InDelta(t, 0, p.Len(), 1e-5)

	b := f.WorldBounds()
	assert.InDelta(t, -1, b[0].X(), 1e-5)
	assert.InDelta(t, 19, b[1].X(), 1e-5)
}

func TestScalarField_Range(t *testing.T) {
	f := NewScalarField([3]int{3, 1, 1})
	f.Data = []float32{float32(math.NaN()), -2, 5}
	lo, hi := f.Range()
	assert.Equal(t, float32(-2), lo)
	assert.Equal(t, float32(5), hi)
}

func TestParseInterpolation(t *testing.T) {
	i, err := ParseInterpolation("none")
	require.NoError(t, err)
	assert.Equal(t, InterpNearest, i)
	i, err = ParseInterpolation("")
	require.NoError(t, err)
	assert.Equal(t, InterpLinear, i)
	_, err = ParseInterpolation("spline")
	assert.Error(t, err)
}

func TestPhantoms(t *testing.T) {
	for _, name := range Phantoms() {
		f, err := NewPhantom(name, 16)
		require.NoError(t, err, name)
		require.NoError(t, f.Validate())
		_, hi := f.Range()
		assert.Greater(t, hi, float32(0), name)

		// Centred on the origin.
		b := f.WorldBounds()
		assert.InDelta(t, 0, b[0].Add(b[1]).Len(), 1e-4, name)
	}
	_, err := NewPhantom("teapot", 16)
	assert.Error(t, err)
}

func TestSphere(t *testing.T) {
	f := NewScalarField([3]int{9, 9, 9})
	Sphere(f, mgl32.Vec3{4, 4, 4}, 2, 7)
	assert.Equal(t, float32(7), f.At(4, 4, 4))
	assert.Equal(t, float32(7), f.At(6, 4, 4))
	assert.Equal(t, float32(0), f.At(7, 4, 4))
	assert.Equal(t, float32(0), f.At(6, 6, 4))
}
