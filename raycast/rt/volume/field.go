package volume

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/volrt/raycast/rt/core"
)

var ErrInvalidField = errors.New("volume: invalid scalar field")

// ScalarField is a dense grid of float32 samples, x fastest. A field with
// Shape[2] == 1 is a 2-D image.
type ScalarField struct {
	Name  string
	Shape [3]int
	Data  []float32

	// VoxelToWorld maps voxel indices (voxel centres at integers) into world
	// space.
	VoxelToWorld mgl32.Mat4
}

func NewScalarField(shape [3]int) *ScalarField {
	n := shape[0] * shape[1] * shape[2]
	if n < 0 {
		n = 0
	}
	return &ScalarField{
		Shape:        shape,
		Data:         make([]float32, n),
		VoxelToWorld: mgl32.Ident4(),
	}
}

// Validate checks that the shape and the data length agree.
func (f *ScalarField) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil field", ErrInvalidField)
	}
	for a, s := range f.Shape {
		if s < 1 {
			return fmt.Errorf("%w: axis %d has size %d", ErrInvalidField, a, s)
		}
	}
	if want := f.Shape[0] * f.Shape[1] * f.Shape[2]; len(f.Data) != want {
		return fmt.Errorf("%w: %d samples for shape %v (want %d)", ErrInvalidField, len(f.Data), f.Shape, want)
	}
	return nil
}

// Is2D reports whether the field is a single slice.
func (f *ScalarField) Is2D() bool { return f.Shape[2] == 1 }

func (f *ScalarField) SetTransform(t *core.Transform) {
	f.VoxelToWorld = t.VoxelToWorld()
}

func (f *ScalarField) Index(x, y, z int) int {
	return x + f.Shape[0]*(y+f.Shape[1]*z)
}

// At returns the sample at integer voxel coordinates, clamped to the grid.
func (f *ScalarField) At(x, y, z int) float32 {
	x = clampIndex(x, f.Shape[0])
	y = clampIndex(y, f.Shape[1])
	z = clampIndex(z, f.Shape[2])
	return f.Data[f.Index(x, y, z)]
}

func (f *ScalarField) Set(x, y, z int, v float32) {
	if x < 0 || y < 0 || z < 0 || x >= f.Shape[0] || y >= f.Shape[1] || z >= f.Shape[2] {
		return
	}
	f.Data[f.Index(x, y, z)] = v
}

// TexToWorld maps normalised texture coordinates into world space.
func (f *ScalarField) TexToWorld() mgl32.Mat4 {
	return f.VoxelToWorld.Mul4(core.TexToVoxelMatrix(f.Shape))
}

// WorldBounds is the world-space AABB of the texture cube.
func (f *ScalarField) WorldBounds() [2]mgl32.Vec3 {
	return core.TransformAABB(f.TexToWorld(), mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
}

// Range returns the smallest and largest finite samples. Both are zero for a
// field without finite samples.
func (f *ScalarField) Range() (lo, hi float32) {
	first := true
	for _, v := range f.Data {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			continue
		}
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

type Interpolation uint32

const (
	InterpNearest Interpolation = iota
	InterpLinear
)

func (i Interpolation) String() string {
	switch i {
	case InterpNearest:
		return "nearest"
	case InterpLinear:
		return "linear"
	}
	return fmt.Sprintf("Interpolation(%d)", uint32(i))
}

func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "none":
		return InterpNearest, nil
	case "", "linear", "trilinear":
		return InterpLinear, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

func (i Interpolation) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Interpolation) UnmarshalText(b []byte) error {
	v, err := ParseInterpolation(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
