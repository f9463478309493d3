package gpu

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/gogpu/naga"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/march"
	"github.com/gekko3d/volrt/raycast/rt/shaders"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

// Workgroup edge length of the ray-march program.
const workgroupSize = 8

// Byte sizes of the uniform blocks in the ray-march program.
const (
	paramsSize = 272 + 16*core.MaxClipPlanes
	passSize   = 16
)

var raymarchTmpl = template.Must(template.New("raymarch").Parse(shaders.RaymarchWGSLTemplate))

type templateData struct {
	Steps         int
	ClipPlanes    int
	ClipModeName  string
	Dims          int
	MaxPlanes     int
	PlaneIndices  []int
	Saturation    float32
	LowTolerance  float32
	HighTolerance float32
}

// GenerateWGSL produces the compute program specialised for key.
func GenerateWGSL(key march.ProgramKey) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	data := templateData{
		Steps:         key.StepsPerPass,
		ClipPlanes:    key.ClipPlaneCount,
		ClipModeName:  key.ClipMode.String(),
		Dims:          key.Dims,
		MaxPlanes:     core.MaxClipPlanes,
		Saturation:    march.SaturationAlpha,
		LowTolerance:  core.BoundsLowTolerance,
		HighTolerance: core.BoundsHighTolerance,
	}
	for i := 0; i < key.ClipPlaneCount; i++ {
		data.PlaneIndices = append(data.PlaneIndices, i)
	}
	var buf bytes.Buffer
	if err := raymarchTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("generate %s: %w", key, err)
	}
	return buf.String(), nil
}

// ValidateWGSL runs the source through the naga front end and returns the
// size of the SPIR-V it produced.
func ValidateWGSL(src string) (int, error) {
	spirv, err := naga.Compile(src)
	if err != nil {
		return 0, err
	}
	return len(spirv), nil
}

// packParams lays out the per-frame uniform block. The layout follows the
// Params struct in the ray-march program.
func packParams(in march.Inputs) []byte {
	tf := in.TF
	f := in.Field
	buf := make([]byte, 0, paramsSize)
	buf = append(buf, mat4ToBytes(in.Rays.TexToClip)...)
	buf = append(buf, mat4ToBytes(in.Rays.ClipToTex)...)
	buf = append(buf, vec3ToBytesPadded(in.Rays.Step)...)
	buf = append(buf, vec3ToBytesPadded(in.Rays.DitherDir)...)
	buf = append(buf, vec4ToBytes(tf.FlatColour)...)

	var enabled float32
	if in.DitherEnabled {
		enabled = 1
	}
	buf = append(buf, vec4ToBytes([4]float32{in.Dither.A, in.Dither.B, in.Dither.C, enabled})...)
	buf = append(buf, vec4ToBytes([4]float32{tf.DomainScale, tf.DomainOffset, tf.ClipLow, tf.ClipHigh})...)

	interp := int32(0)
	if in.Interp == volume.InterpLinear {
		interp = 1
	}
	buf = append(buf, ivec4ToBytes([4]int32{int32(f.Shape[0]), int32(f.Shape[1]), int32(f.Shape[2]), interp})...)

	primary, negative := lutLengths(tf)
	buf = append(buf, uvec4ToBytes([4]uint32{uint32(in.Rays.Width), uint32(in.Rays.Height), primary, negative})...)
	buf = append(buf, uvec4ToBytes([4]uint32{
		boolToU32(tf.UseNegative),
		boolToU32(tf.InvertClipping),
		boolToU32(tf.DiscardClipped),
		0,
	})...)
	buf = append(buf, vec4ToBytes([4]float32{in.BlendExponent, 0, 0, 0})...)

	for i := 0; i < core.MaxClipPlanes; i++ {
		var p [4]float32
		if i < len(in.Planes) {
			p = in.Planes[i]
		}
		buf = append(buf, vec4ToBytes(p)...)
	}
	return buf
}

func packPass(p march.PassParams) []byte {
	buf := uvec4ToBytes([4]uint32{uint32(p.StartStep), boolToU32(p.Final), boolToU32(p.UseTransparency), 0})
	copy(buf[12:], vec4ToBytes([4]float32{p.Transparency})[:4])
	return buf
}

func lutLengths(tf *core.TransferFunction) (primary, negative uint32) {
	if tf.Primary != nil {
		primary = uint32(len(tf.Primary.Entries))
	}
	if tf.Negative != nil {
		negative = uint32(len(tf.Negative.Entries))
	}
	return primary, negative
}

// packLUT concatenates the primary and negative tables.
func packLUT(tf *core.TransferFunction) []byte {
	var entries [][4]float32
	if tf.Primary != nil {
		for _, e := range tf.Primary.Entries {
			entries = append(entries, e)
		}
	}
	if tf.Negative != nil {
		for _, e := range tf.Negative.Entries {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		entries = append(entries, [4]float32{})
	}
	buf := make([]byte, 0, 16*len(entries))
	for _, e := range entries {
		buf = append(buf, vec4ToBytes(e)...)
	}
	return buf
}

func dispatchSize(width, height int) (uint32, uint32) {
	return uint32((width + workgroupSize - 1) / workgroupSize), uint32((height + workgroupSize - 1) / workgroupSize)
}
