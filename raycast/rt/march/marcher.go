package march

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/volrt/raycast/rt/core"
)

// SaturationAlpha is the accumulated alpha above which further samples are
// skipped.
const SaturationAlpha = 0.95

// MaxBlendFactor keeps the opacity exponent above zero.
const MaxBlendFactor = 0.999

// BlendExponent maps a user blend factor in [0,1) onto the exponent of the
// opacity curve. Higher blend factors give more transparent samples.
func BlendExponent(blendFactor float32) float32 {
	bf := mgl32.Clamp(blendFactor, 0, MaxBlendFactor)
	return math32.Pow(1-bf, 0.25)
}

// Opacity converts a sample alpha into its compositing contribution.
func Opacity(alpha, exponent float32) float32 {
	return 1 - math32.Pow(1-mgl32.Clamp(alpha, 0, 1), exponent)
}

// RayState is the per-pixel state of one pass.
type RayState struct {
	Pos           mgl32.Vec3
	Colour        mgl32.Vec4 // premultiplied
	Saturated     bool
	DepthCaptured bool
	Depth         float32
}

// PassParams are the per-pass uniforms.
type PassParams struct {
	StartStep int
	Final     bool

	// Scales the premultiplied colour of the last pass when UseTransparency
	// is set.
	Transparency    float32
	UseTransparency bool
}

type PixelInput struct {
	X, Y        int
	Entry       mgl32.Vec3
	StartColour mgl32.Vec4
	StartDepth  float32
}

type PixelOutput struct {
	Colour  mgl32.Vec4
	Depth   float32
	Discard bool
}

// Marcher is a program bound to one frame's inputs. It is safe for
// concurrent use.
type Marcher struct {
	prog *Program
	in   Inputs
	clip core.ClipEvaluator

	depthRow2, depthRow3 mgl32.Vec4
}

func (m *Marcher) Key() ProgramKey { return m.prog.Key }

// Start initialises the ray state for a pixel at the beginning of a pass.
func (m *Marcher) Start(pass PassParams, px PixelInput) (RayState, mgl32.Vec3) {
	base := px.Entry
	if m.in.DitherEnabled {
		d := m.in.Dither.At(float32(px.X)+0.5, float32(px.Y)+0.5)
		base = base.Add(m.in.Rays.DitherDir.Mul(d))
	}
	st := RayState{
		Pos:           base.Add(m.in.Rays.Step.Mul(float32(pass.StartStep))),
		Colour:        px.StartColour,
		Depth:         px.StartDepth,
		DepthCaptured: px.StartColour[3] != 0,
		Saturated:     px.StartColour[3] > SaturationAlpha,
	}
	return st, base
}

// Step runs one ray step at absolute step index i from base, updating st.
// It reports whether the sample contributed.
func (m *Marcher) Step(st *RayState, base mgl32.Vec3, i int) bool {
	pos := base.Add(m.in.Rays.Step.Mul(float32(i)))
	st.Pos = pos

	v := m.in.Field.Sample(pos, m.in.Interp)
	if math32.IsNaN(v) {
		return false
	}
	colour, _, discard := m.in.TF.Sample(v)
	if discard {
		return false
	}
	if m.clip.Reject(pos) {
		return false
	}
	shape := m.in.Field.Shape
	if core.InBounds(core.TexToVoxel(pos, shape), shape) < 0 {
		return false
	}
	if st.Colour[3] > SaturationAlpha {
		st.Saturated = true
		return false
	}

	a := Opacity(colour[3], m.in.BlendExponent)
	// Transparent samples neither composite nor place the depth.
	if a <= 0 {
		return false
	}
	sample := mgl32.Vec4{colour[0] * a, colour[1] * a, colour[2] * a, a}
	st.Colour = st.Colour.Add(sample.Mul(1 - st.Colour[3]))
	if st.Colour[3] > 1 {
		st.Colour[3] = 1
	}

	if !st.DepthCaptured {
		st.Depth = core.ProjectDepth(m.depthRow2, m.depthRow3, pos)
		st.DepthCaptured = true
	}
	return true
}

// MarchPixel runs one pass of the ray through a single pixel.
func (m *Marcher) MarchPixel(pass PassParams, px PixelInput) PixelOutput {
	st, base := m.Start(pass, px)
	steps := m.prog.Key.StepsPerPass
	for i := 0; i < steps; i++ {
		m.Step(&st, base, pass.StartStep+i)
	}
	return m.finish(pass, px, st)
}

func (m *Marcher) finish(pass PassParams, px PixelInput, st RayState) PixelOutput {
	if px.StartColour[3] == 0 && st.Colour[3] == 0 {
		return PixelOutput{Discard: true, Depth: 1}
	}
	out := PixelOutput{Colour: st.Colour, Depth: st.Depth}
	if pass.Final && pass.UseTransparency {
		// Colour is premultiplied, so fading scales every channel.
		out.Colour = out.Colour.Mul(pass.Transparency)
	}
	return out
}
