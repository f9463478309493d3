package pass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/march"
)

// ErrCancelled is returned when a frame is abandoned between passes. It
// wraps the context error.
var ErrCancelled = errors.New("pass: frame cancelled")

// Frame is everything one multi-pass render needs.
type Frame struct {
	ID     uuid.UUID
	Inputs march.Inputs

	ClipMode     core.ClipMode
	NumSteps     int
	StepsPerPass int

	Transparency    float32
	UseTransparency bool
}

// Key is the program specialisation this frame needs.
func (f *Frame) Key() ProgramKey {
	return ProgramKey{
		StepsPerPass:   f.StepsPerPass,
		ClipPlaneCount: len(f.Inputs.Planes),
		ClipMode:       f.ClipMode,
		Dims:           march.FieldDims(f.Inputs.Field),
	}
}

type Result struct {
	Image     *Image
	Passes    int
	PassTimes []time.Duration
	ProgramID uuid.UUID
	// Culled is set when the field was outside the view and no pass ran.
	Culled bool
}

// PassCount is the number of passes needed for numSteps steps.
func PassCount(numSteps, stepsPerPass int) int {
	if numSteps < 1 || stepsPerPass < 1 {
		return 0
	}
	return (numSteps + stepsPerPass - 1) / stepsPerPass
}

// Coordinator splits ray marches into passes and threads colour and depth
// between them.
type Coordinator struct {
	backend Backend
	cache   *ProgramCache
	logger  core.Logger

	// OnPass, when set, is called after every completed pass.
	OnPass func(frame uuid.UUID, pass, passes int, took time.Duration)
}

func NewCoordinator(backend Backend, logger core.Logger) *Coordinator {
	logger = core.Sub(logger, "pass")
	return &Coordinator{
		backend: backend,
		cache:   NewProgramCache(backend, logger),
		logger:  logger,
	}
}

func (c *Coordinator) Backend() Backend     { return c.backend }
func (c *Coordinator) Cache() *ProgramCache { return c.cache }

func (c *Coordinator) Release() { c.cache.Release() }

// Render runs every pass of f in order. Cancellation is checked before each
// pass; a cancelled frame returns ErrCancelled and no image.
func (c *Coordinator) Render(ctx context.Context, f *Frame) (*Result, error) {
	if f.NumSteps < 1 {
		return nil, fmt.Errorf("pass: %d steps", f.NumSteps)
	}
	if err := f.Inputs.Field.Validate(); err != nil {
		return nil, err
	}
	spp := f.StepsPerPass
	if spp < 1 || spp > f.NumSteps {
		spp = f.NumSteps
	}
	id := f.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	rays := f.Inputs.Rays
	targets, err := c.backend.NewTargets(rays.Width, rays.Height)
	if err != nil {
		return nil, fmt.Errorf("pass: allocating %dx%d targets: %w", rays.Width, rays.Height, err)
	}
	defer targets.Release()

	if err := targets.Clear(0); err != nil {
		return nil, err
	}

	// Nothing to march when the texture cube is outside the view volume.
	planes := core.ExtractFrustum(rays.TexToClip)
	if !core.AABBInFrustum([2]mgl32.Vec3{{0, 0, 0}, {1, 1, 1}}, planes) {
		c.logger.Debugf("frame %s: field outside view, skipping", id)
		img, err := targets.Read(0)
		if err != nil {
			return nil, err
		}
		return &Result{Image: img.Clone(), Culled: true}, nil
	}

	key := f.Key()
	key.StepsPerPass = spp
	prog, progID, err := c.cache.Get(key)
	if err != nil {
		return nil, err
	}
	bound, err := prog.Bind(f.Inputs)
	if err != nil {
		return nil, fmt.Errorf("pass: bind %s: %w", key, err)
	}
	defer bound.Release()

	n := PassCount(f.NumSteps, spp)
	res := &Result{Passes: n, ProgramID: progID, PassTimes: make([]time.Duration, 0, n)}
	src, dst := 0, 1
	for k := 0; k < n; k++ {
		if err := ctx.Err(); err != nil {
			c.logger.Debugf("frame %s: cancelled before pass %d/%d", id, k+1, n)
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		params := march.PassParams{
			StartStep:       k * spp,
			Final:           k == n-1,
			Transparency:    f.Transparency,
			UseTransparency: f.UseTransparency,
		}
		start := time.Now()
		if err := bound.RunPass(params, targets, src, dst); err != nil {
			return nil, fmt.Errorf("pass %d/%d: %w", k+1, n, err)
		}
		took := time.Since(start)
		res.PassTimes = append(res.PassTimes, took)
		if c.OnPass != nil {
			c.OnPass(id, k, n, took)
		}
		src, dst = dst, src
	}

	img, err := targets.Read(src)
	if err != nil {
		return nil, fmt.Errorf("pass: reading result: %w", err)
	}
	res.Image = img.Clone()
	c.logger.Debugf("frame %s: %d passes of %d steps, %d/%d pixels covered",
		id, n, spp, res.Image.CoveredCount(), len(res.Image.Covered))
	return res, nil
}
