package volrt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/gpu"
	"github.com/gekko3d/volrt/raycast/rt/march"
	"github.com/gekko3d/volrt/raycast/rt/output"
	"github.com/gekko3d/volrt/raycast/rt/pass"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

var ErrInvalidFrame = errors.New("volrt: invalid frame")

// ErrCancelled is returned when a frame's context ends between passes.
var ErrCancelled = pass.ErrCancelled

// Frame describes one render. ClipPlanes are in world space.
type Frame struct {
	Field  *volume.ScalarField
	Interp volume.Interpolation
	TF     *core.TransferFunction

	ClipPlanes []core.ClipPlane
	ClipMode   core.ClipMode

	Camera        *core.CameraState
	Width, Height int

	NumSteps     int
	StepsPerPass int
	BlendFactor  float32
	Dithering    float32
	// Transparency fades the final colour. Values outside (0,1) leave
	// it unchanged.
	Transparency float32

	// Resolution renders at a percentage of Width x Height and upscales.
	Resolution float32
	Smoothing  int
	// Zero constants fall back to core.DefaultDither.
	Dither core.DitherConstants
}

type Result struct {
	FrameID uuid.UUID
	// Image is at the frame's display size, after upscaling and smoothing.
	Image *pass.Image
	// RenderWidth and RenderHeight are the size the passes ran at.
	RenderWidth, RenderHeight int

	Passes    int
	PassTimes []time.Duration
	ProgramID uuid.UUID
	Culled    bool
}

// Renderer renders frames on one backend and keeps its compiled programs
// between frames. RenderFrame may be called from several goroutines.
type Renderer struct {
	backend  pass.Backend
	coord    *pass.Coordinator
	logger   Logger
	profiler *Profiler
	release  func()
}

// NewRenderer creates the backend named by opts.Backend.
func NewRenderer(opts Options, logger Logger) (*Renderer, error) {
	logger = core.OrNop(logger)
	switch opts.Backend {
	case "", "cpu":
		b := pass.NewCPUBackend(opts.Workers)
		r := NewRendererWithBackend(b, logger)
		r.release = b.Close
		return r, nil
	case "gpu":
		b, err := gpu.NewBackend(gpu.Options{
			PowerPreference: opts.PowerPreference,
			ValidateShaders: opts.ValidateShaders,
		}, logger)
		if err != nil {
			return nil, err
		}
		r := NewRendererWithBackend(b, logger)
		r.release = b.Release
		return r, nil
	}
	return nil, fmt.Errorf("volrt: unknown backend %q", opts.Backend)
}

// NewRendererWithBackend renders on a caller-owned backend.
func NewRendererWithBackend(backend pass.Backend, logger Logger) *Renderer {
	logger = core.OrNop(logger)
	r := &Renderer{
		backend:  backend,
		coord:    pass.NewCoordinator(backend, logger),
		logger:   logger,
		profiler: NewProfiler(),
	}
	r.coord.OnPass = func(_ uuid.UUID, k, _ int, took time.Duration) {
		r.profiler.Record(fmt.Sprintf("pass %d", k), took)
	}
	logger.Infof("renderer using %s backend", backend.Name())
	return r
}

func (r *Renderer) Backend() pass.Backend         { return r.backend }
func (r *Renderer) Profiler() *Profiler           { return r.profiler }
func (r *Renderer) Programs() []pass.ProgramStats { return r.coord.Cache().Stats() }

// Close releases cached programs and, for backends created by NewRenderer,
// the backend itself.
func (r *Renderer) Close() {
	r.coord.Release()
	if r.release != nil {
		r.release()
		r.release = nil
	}
}

func (f *Frame) validate() error {
	switch {
	case f.Field == nil:
		return fmt.Errorf("%w: no field", ErrInvalidFrame)
	case f.TF == nil:
		return fmt.Errorf("%w: no transfer function", ErrInvalidFrame)
	case f.Camera == nil:
		return fmt.Errorf("%w: no camera", ErrInvalidFrame)
	case f.Width < 1 || f.Height < 1:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidFrame, f.Width, f.Height)
	case f.NumSteps < 1:
		return fmt.Errorf("%w: %d steps", ErrInvalidFrame, f.NumSteps)
	case len(f.ClipPlanes) > core.MaxClipPlanes:
		return fmt.Errorf("%w: %d clip planes", ErrInvalidFrame, len(f.ClipPlanes))
	case f.Smoothing < 0:
		return fmt.Errorf("%w: smoothing %d", ErrInvalidFrame, f.Smoothing)
	}
	if err := f.Field.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return nil
}

// RenderFrame renders f and post-processes the result to the display size.
func (r *Renderer) RenderFrame(ctx context.Context, f Frame) (*Result, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	id := uuid.New()

	r.profiler.BeginScope("prepare")
	rw, rh := output.ScaledSize(f.Width, f.Height, f.Resolution)
	texToWorld := f.Field.TexToWorld()
	worldToTex := texToWorld.Inv()
	planes := make([]core.ClipPlane, len(f.ClipPlanes))
	for i, p := range f.ClipPlanes {
		planes[i] = p.Transform(worldToTex)
	}
	dither := f.Dither
	if dither == (core.DitherConstants{}) {
		dither = core.DefaultDither
	}
	pf := &pass.Frame{
		ID: id,
		Inputs: march.Inputs{
			Field:         f.Field,
			Interp:        f.Interp,
			TF:            f.TF,
			Planes:        planes,
			Rays:          f.Camera.NewRaySettings(texToWorld, rw, rh, f.NumSteps, f.Dithering),
			BlendExponent: march.BlendExponent(f.BlendFactor),
			Dither:        dither,
			DitherEnabled: f.Dithering > 0,
		},
		ClipMode:        f.ClipMode,
		NumSteps:        f.NumSteps,
		StepsPerPass:    f.StepsPerPass,
		Transparency:    f.Transparency,
		UseTransparency: f.Transparency > 0 && f.Transparency < 1,
	}
	r.profiler.EndScope("prepare")

	r.profiler.BeginScope("march")
	res, err := r.coord.Render(ctx, pf)
	r.profiler.EndScope("march")
	if err != nil {
		return nil, err
	}

	r.profiler.BeginScope("post")
	img := res.Image
	if rw != f.Width || rh != f.Height {
		if img, err = output.Upscale(img, f.Width, f.Height); err != nil {
			return nil, err
		}
	}
	if f.Smoothing > 0 {
		if img, err = output.Smooth(img, f.Smoothing); err != nil {
			return nil, err
		}
	}
	r.profiler.EndScope("post")

	r.profiler.SetCount("passes", res.Passes)
	r.profiler.SetCount("covered", img.CoveredCount())
	r.profiler.SetCount("programs", r.coord.Cache().Len())

	return &Result{
		FrameID:      id,
		Image:        img,
		RenderWidth:  rw,
		RenderHeight: rh,
		Passes:       res.Passes,
		PassTimes:    res.PassTimes,
		ProgramID:    res.ProgramID,
		Culled:       res.Culled,
	}, nil
}
