package march

import (
	"errors"
	"fmt"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

var ErrProgramMismatch = errors.New("march: inputs do not match program")

// ProgramKey identifies one specialised marcher. Everything in it is fixed
// for the lifetime of a program.
type ProgramKey struct {
	StepsPerPass   int
	ClipPlaneCount int
	ClipMode       core.ClipMode
	Dims           int // 2 or 3
}

func (k ProgramKey) String() string {
	return fmt.Sprintf("steps=%d clip=%d/%s dims=%d", k.StepsPerPass, k.ClipPlaneCount, k.ClipMode, k.Dims)
}

// Validate reports keys no program can be built for.
func (k ProgramKey) Validate() error {
	if k.StepsPerPass < 1 {
		return fmt.Errorf("steps per pass %d < 1", k.StepsPerPass)
	}
	if k.ClipPlaneCount < 0 || k.ClipPlaneCount > core.MaxClipPlanes {
		return fmt.Errorf("clip plane count %d outside [0,%d]", k.ClipPlaneCount, core.MaxClipPlanes)
	}
	if k.ClipMode > core.ClipComplement {
		return fmt.Errorf("unknown clip mode %v", k.ClipMode)
	}
	if k.Dims != 2 && k.Dims != 3 {
		return fmt.Errorf("unsupported dimensionality %d", k.Dims)
	}
	return nil
}

// Inputs is the per-frame data shared read-only by every pixel.
type Inputs struct {
	Field  *volume.ScalarField
	Interp volume.Interpolation
	TF     *core.TransferFunction

	// Planes are in texture space.
	Planes []core.ClipPlane

	Rays          core.RaySettings
	BlendExponent float32
	Dither        core.DitherConstants
	DitherEnabled bool
}

// Program is the CPU rendition of a specialised ray-march program.
type Program struct {
	Key ProgramKey
}

func NewProgram(key ProgramKey) (*Program, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("march: %s: %w", key, err)
	}
	return &Program{Key: key}, nil
}

// Bind checks the frame inputs against the program and returns a marcher
// ready to run passes.
func (p *Program) Bind(in Inputs) (*Marcher, error) {
	if err := in.Field.Validate(); err != nil {
		return nil, err
	}
	if in.TF == nil {
		return nil, fmt.Errorf("%w: no transfer function", ErrProgramMismatch)
	}
	if len(in.Planes) != p.Key.ClipPlaneCount {
		return nil, fmt.Errorf("%w: %d clip planes for a %d plane program", ErrProgramMismatch, len(in.Planes), p.Key.ClipPlaneCount)
	}
	if dims := FieldDims(in.Field); dims != p.Key.Dims {
		return nil, fmt.Errorf("%w: %d-D field for a %d-D program", ErrProgramMismatch, dims, p.Key.Dims)
	}

	m := &Marcher{
		prog: p,
		in:   in,
		clip: core.ClipEvaluator{Planes: in.Planes, Mode: p.Key.ClipMode},
	}
	m.depthRow2, m.depthRow3 = in.Rays.DepthRows()
	return m, nil
}

// FieldDims is the dimensionality a program must be specialised for to
// render f.
func FieldDims(f *volume.ScalarField) int {
	if f.Is2D() {
		return 2
	}
	return 3
}
