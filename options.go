package volrt

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/march"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

const (
	MinNumSteps = 1
	MaxNumSteps = 1000
	MaxDither   = 0.1
)

// ClipPlaneOptions places one clip plane relative to the field bounds.
type ClipPlaneOptions struct {
	Position    float32 `yaml:"position"`    // percent, 50 is the centre
	Azimuth     float32 `yaml:"azimuth"`     // degrees about Z
	Inclination float32 `yaml:"inclination"` // degrees about X
}

// PlacementOptions replaces a field's voxel-to-world transform.
type PlacementOptions struct {
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"` // XYZ Euler angles in degrees
	Scale    [3]float32 `yaml:"scale"`    // voxel size; zero components mean 1
}

type CameraOptions struct {
	Azimuth   float32 `yaml:"azimuth"`
	Elevation float32 `yaml:"elevation"`
	Zoom      float32 `yaml:"zoom"`
}

// Options configures a Renderer and the frames it renders.
type Options struct {
	Backend         string `yaml:"backend"` // cpu or gpu
	Workers         int    `yaml:"workers"`
	PowerPreference string `yaml:"powerPreference"`
	ValidateShaders bool   `yaml:"validateShaders"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	NumSteps     int     `yaml:"numSteps"`
	StepsPerPass int     `yaml:"stepsPerPass"`
	BlendFactor  float32 `yaml:"blendFactor"`
	Dithering    float32 `yaml:"dithering"`
	// Final colour multiplier, 1 is opaque.
	Transparency float32 `yaml:"transparency"`
	Resolution   float32 `yaml:"resolution"` // percent of the output size
	Smoothing    int     `yaml:"smoothing"`

	Interpolation volume.Interpolation `yaml:"interpolation"`

	ClipPlanes []ClipPlaneOptions `yaml:"clipPlanes"`
	ClipMode   core.ClipMode      `yaml:"clipMode"`

	// Nil ranges default to the data range of the field.
	DisplayRange  *[2]float32 `yaml:"displayRange"`
	ClippingRange *[2]float32 `yaml:"clippingRange"`

	Cmap            string     `yaml:"cmap"`
	NegativeCmap    string     `yaml:"negativeCmap"`
	UseNegativeCmap bool       `yaml:"useNegativeCmap"`
	InvertCmap      bool       `yaml:"invertCmap"`
	InvertClipping  bool       `yaml:"invertClipping"`
	DiscardClipped  bool       `yaml:"discardClipped"`
	LinearAlpha     bool       `yaml:"linearAlpha"`
	FlatColour      [4]float32 `yaml:"flatColour"`

	Placement  *PlacementOptions    `yaml:"placement"`
	Camera     CameraOptions        `yaml:"camera"`
	Background [3]float32           `yaml:"background"`
	Dither     core.DitherConstants `yaml:"dither"`
}

func DefaultOptions() Options {
	return Options{
		Backend:         "cpu",
		PowerPreference: "high-performance",
		ValidateShaders: true,
		Width:           512,
		Height:          512,
		NumSteps:        100,
		StepsPerPass:    25,
		BlendFactor:     0.1,
		Dithering:       0.01,
		Transparency:    1,
		Resolution:      100,
		Interpolation:   volume.InterpLinear,
		ClipMode:        core.ClipIntersection,
		Cmap:            "greyscale",
		NegativeCmap:    "blue-lightblue",
		LinearAlpha:     true,
		Camera:          CameraOptions{Azimuth: 30, Elevation: 20, Zoom: 1},
		Dither:          core.DefaultDither,
	}
}

// LoadOptions reads YAML over the defaults and validates the result.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("volrt: parse %s: %w", path, err)
	}
	if err := opts.Normalize(); err != nil {
		return opts, fmt.Errorf("volrt: %s: %w", path, err)
	}
	return opts, nil
}

// Normalize clamps ranged values and rejects settings that cannot render.
func (o *Options) Normalize() error {
	if o.Backend != "cpu" && o.Backend != "gpu" {
		return fmt.Errorf("unknown backend %q", o.Backend)
	}
	if o.Width < 1 || o.Height < 1 {
		return fmt.Errorf("invalid size %dx%d", o.Width, o.Height)
	}
	if len(o.ClipPlanes) > core.MaxClipPlanes {
		return fmt.Errorf("%d clip planes, at most %d", len(o.ClipPlanes), core.MaxClipPlanes)
	}
	if o.Smoothing < 0 {
		return fmt.Errorf("negative smoothing %d", o.Smoothing)
	}
	o.NumSteps = min(max(o.NumSteps, MinNumSteps), MaxNumSteps)
	if o.StepsPerPass < 1 || o.StepsPerPass > o.NumSteps {
		o.StepsPerPass = o.NumSteps
	}
	o.BlendFactor = mgl32.Clamp(o.BlendFactor, 0, march.MaxBlendFactor)
	o.Dithering = mgl32.Clamp(o.Dithering, 0, MaxDither)
	o.Transparency = mgl32.Clamp(o.Transparency, 0, 1)
	if o.Resolution <= 0 || o.Resolution > 100 {
		o.Resolution = 100
	}
	if o.Camera.Zoom <= 0 {
		o.Camera.Zoom = 1
	}
	return nil
}

// TransferFunction builds the transfer function for field.
func (o *Options) TransferFunction(field *volume.ScalarField) (*core.TransferFunction, error) {
	cmap, err := core.ResolveColourMap(o.Cmap)
	if err != nil {
		return nil, err
	}
	var neg *core.ColourMap
	if o.UseNegativeCmap && o.NegativeCmap != "" {
		if neg, err = core.ResolveColourMap(o.NegativeCmap); err != nil {
			return nil, err
		}
	}

	lo, hi := field.Range()
	display := [2]float32{lo, hi}
	if o.DisplayRange != nil {
		display = *o.DisplayRange
	}
	// Clipping defaults to the data range, which keeps every sample.
	clipping := [2]float32{lo, hi}
	if o.ClippingRange != nil {
		clipping = *o.ClippingRange
	}

	return core.NewTransferFunction(core.TransferOptions{
		Cmap:           cmap,
		NegativeCmap:   neg,
		DisplayLow:     display[0],
		DisplayHigh:    display[1],
		ClipLow:        clipping[0],
		ClipHigh:       clipping[1],
		Invert:         o.InvertCmap,
		UseNegative:    o.UseNegativeCmap,
		InvertClipping: o.InvertClipping,
		DiscardClipped: o.DiscardClipped,
		LinearAlpha:    o.LinearAlpha,
		FlatColour:     o.FlatColour,
	}), nil
}

// WorldClipPlanes places the configured planes on the world bounds of field.
func (o *Options) WorldClipPlanes(field *volume.ScalarField) []core.ClipPlane {
	box := field.WorldBounds()
	planes := make([]core.ClipPlane, 0, len(o.ClipPlanes))
	for _, p := range o.ClipPlanes {
		planes = append(planes, core.ClipPlaneFromAngles(p.Position, p.Azimuth, p.Inclination, box[0], box[1]))
	}
	return planes
}

// Place applies the configured placement to field. Without one the field
// keeps its own transform.
func (o *Options) Place(field *volume.ScalarField) {
	if o.Placement == nil {
		return
	}
	pl := o.Placement
	t := core.NewTransform()
	t.Position = mgl32.Vec3(pl.Position)
	t.Rotation = mgl32.AnglesToQuat(
		mgl32.DegToRad(pl.Rotation[0]),
		mgl32.DegToRad(pl.Rotation[1]),
		mgl32.DegToRad(pl.Rotation[2]),
		mgl32.XYZ,
	)
	for a, s := range pl.Scale {
		if s != 0 {
			t.Scale[a] = s
		}
	}
	field.SetTransform(t)
}

// NewCamera frames field and applies the configured angles and zoom.
func (o *Options) NewCamera(field *volume.ScalarField) *core.CameraState {
	cam := core.NewCameraState()
	cam.Frame(field.WorldBounds())
	cam.SetAngles(o.Camera.Azimuth, o.Camera.Elevation)
	cam.Zoom = o.Camera.Zoom
	return cam
}

// Frame assembles a complete frame description for field.
func (o *Options) Frame(field *volume.ScalarField) (Frame, error) {
	if err := field.Validate(); err != nil {
		return Frame{}, err
	}
	tf, err := o.TransferFunction(field)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Field:        field,
		Interp:       o.Interpolation,
		TF:           tf,
		ClipPlanes:   o.WorldClipPlanes(field),
		ClipMode:     o.ClipMode,
		Camera:       o.NewCamera(field),
		Width:        o.Width,
		Height:       o.Height,
		NumSteps:     o.NumSteps,
		StepsPerPass: o.StepsPerPass,
		BlendFactor:  o.BlendFactor,
		Dithering:    o.Dithering,
		Transparency: o.Transparency,
		Resolution:   o.Resolution,
		Smoothing:    o.Smoothing,
		Dither:       o.Dither,
	}, nil
}
