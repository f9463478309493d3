package gpu

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/march"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

func TestGenerateWGSL_Specialisation(t *testing.T) {
	tests := []struct {
		name    string
		key     march.ProgramKey
		want    []string
		notWant []string
	}{
		{
			name: "no planes",
			key:  march.ProgramKey{StepsPerPass: 25, Dims: 3},
			want: []string{"const STEPS: u32 = 25u;", "return false;", "c111"},
		},
		{
			name:    "intersection",
			key:     march.ProgramKey{StepsPerPass: 10, ClipPlaneCount: 3, ClipMode: core.ClipIntersection, Dims: 3},
			want:    []string{"params.planes[2]", "return hits == 3u;"},
			notWant: []string{"params.planes[3]"},
		},
		{
			name: "union",
			key:  march.ProgramKey{StepsPerPass: 10, ClipPlaneCount: 1, ClipMode: core.ClipUnion, Dims: 3},
			want: []string{"return hits > 0u;"},
		},
		{
			name: "complement",
			key:  march.ProgramKey{StepsPerPass: 10, ClipPlaneCount: 2, ClipMode: core.ClipComplement, Dims: 3},
			want: []string{"return hits == 0u;"},
		},
		{
			name:    "2d",
			key:     march.ProgramKey{StepsPerPass: 100, Dims: 2},
			want:    []string{"c10"},
			notWant: []string{"c111"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := GenerateWGSL(tt.key)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, src, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, src, w)
			}
			assert.Contains(t, src, "const SATURATION: f32 = 0.9500;")
			assert.Contains(t, src, "@workgroup_size(8, 8, 1)")
		})
	}
}

func TestGenerateWGSL_PlaneTestsUnrolled(t *testing.T) {
	src, err := GenerateWGSL(march.ProgramKey{StepsPerPass: 1, ClipPlaneCount: core.MaxClipPlanes, Dims: 3})
	require.NoError(t, err)
	assert.Equal(t, core.MaxClipPlanes, strings.Count(src, "hits = hits + 1u;"))
}

func TestValidateWGSL_AllVariants(t *testing.T) {
	modes := []core.ClipMode{core.ClipIntersection, core.ClipUnion, core.ClipComplement}
	for _, dims := range []int{2, 3} {
		for _, planes := range []int{0, 1, core.MaxClipPlanes} {
			for _, mode := range modes {
				key := march.ProgramKey{StepsPerPass: 25, ClipPlaneCount: planes, ClipMode: mode, Dims: dims}
				t.Run(key.String(), func(t *testing.T) {
					src, err := GenerateWGSL(key)
					require.NoError(t, err)
					n, err := ValidateWGSL(src)
					require.NoError(t, err)
					assert.Greater(t, n, 0)
				})
			}
		}
	}
}

func TestGenerateWGSL_InvalidKey(t *testing.T) {
	_, err := GenerateWGSL(march.ProgramKey{StepsPerPass: 0, Dims: 3})
	assert.Error(t, err)
	_, err = GenerateWGSL(march.ProgramKey{StepsPerPass: 1, Dims: 4})
	assert.Error(t, err)
}

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func u32At(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func TestPackParams_Layout(t *testing.T) {
	f := volume.NewScalarField([3]int{4, 5, 6})
	tf := core.NewTransferFunction(core.TransferOptions{
		DisplayLow:     0,
		DisplayHigh:    2,
		ClipLow:        0.25,
		ClipHigh:       1.5,
		UseNegative:    true,
		DiscardClipped: true,
		FlatColour:     mgl32.Vec4{0.1, 0.2, 0.3, 0.4},
		NegativeCmap:   &core.ColourMap{Entries: []mgl32.Vec4{{0, 0, 1, 1}}},
	})
	planes := []core.ClipPlane{{1, 0, 0, -0.5}, {0, 1, 0, -0.25}}
	in := march.Inputs{
		Field:         f,
		Interp:        volume.InterpLinear,
		TF:            tf,
		Planes:        planes,
		Rays:          core.RaySettings{Width: 640, Height: 480, TexToClip: mgl32.Ident4(), ClipToTex: mgl32.Ident4(), Step: mgl32.Vec3{0, 0, 0.01}},
		BlendExponent: 0.75,
		Dither:        core.DefaultDither,
		DitherEnabled: true,
	}

	b := packParams(in)
	require.Len(t, b, paramsSize)
	assert.Equal(t, 432, paramsSize)

	assert.Equal(t, float32(1), f32At(b, 0), "tex_to_clip[0][0]")
	assert.Equal(t, float32(0.01), f32At(b, 128+8), "ray_step.z")
	assert.Equal(t, float32(0.4), f32At(b, 160+12), "flat_colour.a")
	assert.Equal(t, core.DefaultDither.A, f32At(b, 176))
	assert.Equal(t, float32(1), f32At(b, 176+12), "dither enabled")
	assert.Equal(t, float32(0.5), f32At(b, 192), "domain scale")
	assert.Equal(t, float32(0.25), f32At(b, 192+8), "clip low")
	assert.Equal(t, uint32(5), u32At(b, 208+4), "shape.y")
	assert.Equal(t, uint32(1), u32At(b, 208+12), "linear interpolation")
	assert.Equal(t, uint32(640), u32At(b, 224))
	assert.Equal(t, uint32(256), u32At(b, 224+8), "primary lut length")
	assert.Equal(t, uint32(1), u32At(b, 224+12), "negative lut length")
	assert.Equal(t, uint32(1), u32At(b, 240), "use negative")
	assert.Equal(t, uint32(0), u32At(b, 240+4), "invert clipping")
	assert.Equal(t, uint32(1), u32At(b, 240+8), "discard clipped")
	assert.Equal(t, float32(0.75), f32At(b, 256))
	assert.Equal(t, float32(-0.25), f32At(b, 272+16+12), "second plane d")
	assert.Equal(t, float32(0), f32At(b, 272+32), "unused planes are zero")
}

func TestPackPass(t *testing.T) {
	b := packPass(march.PassParams{StartStep: 50, Final: true, UseTransparency: true, Transparency: 0.5})
	require.Len(t, b, passSize)
	assert.Equal(t, uint32(50), u32At(b, 0))
	assert.Equal(t, uint32(1), u32At(b, 4))
	assert.Equal(t, uint32(1), u32At(b, 8))
	assert.Equal(t, float32(0.5), f32At(b, 12))
}

func TestPackLUT(t *testing.T) {
	tf := &core.TransferFunction{
		Primary:  &core.ColourMap{Entries: []mgl32.Vec4{{1, 0, 0, 1}, {0, 1, 0, 1}}},
		Negative: &core.ColourMap{Entries: []mgl32.Vec4{{0, 0, 1, 0.5}}},
	}
	b := packLUT(tf)
	require.Len(t, b, 3*16)
	assert.Equal(t, float32(1), f32At(b, 16+4), "second primary entry green")
	assert.Equal(t, float32(0.5), f32At(b, 32+12), "negative entry alpha")

	assert.Len(t, packLUT(&core.TransferFunction{}), 16, "empty tables still bind")
}

func TestDispatchSize(t *testing.T) {
	x, y := dispatchSize(640, 481)
	assert.Equal(t, uint32(80), x)
	assert.Equal(t, uint32(61), y)
	x, y = dispatchSize(1, 1)
	assert.Equal(t, uint32(1), x)
	assert.Equal(t, uint32(1), y)
}
