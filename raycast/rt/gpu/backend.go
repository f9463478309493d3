package gpu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/march"
	"github.com/gekko3d/volrt/raycast/rt/pass"
)

var ErrForeignTargets = errors.New("gpu: targets belong to another backend")

type Options struct {
	// PowerPreference is "high-performance" (default) or "low-power".
	PowerPreference string
	// ValidateShaders runs every generated program through naga before
	// handing it to the device.
	ValidateShaders bool
}

func DefaultOptions() Options {
	return Options{PowerPreference: "high-performance", ValidateShaders: true}
}

// Backend runs ray-march passes as compute dispatches on a WebGPU device.
type Backend struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter

	buffers bufferManager
	opts    Options
	logger  core.Logger
	name    string
	owned   bool

	// Queue submissions are serialised across bound programs.
	mu sync.Mutex
}

// NewBackend creates a headless device.
func NewBackend(opts Options, logger core.Logger) (*Backend, error) {
	logger = core.Sub(logger, "gpu")
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("gpu: CreateInstance returned nil")
	}

	pp := wgpu.PowerPreferenceHighPerformance
	if strings.EqualFold(opts.PowerPreference, "low-power") {
		pp = wgpu.PowerPreferenceLowPower
	}
	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: pp})
	if err != nil || adapter == nil {
		inst.Release()
		return nil, fmt.Errorf("gpu: request adapter: %v", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil || device == nil {
		adapter.Release()
		inst.Release()
		return nil, fmt.Errorf("gpu: request device: %v", err)
	}

	b := newBackend(device, opts, logger)
	b.Instance = inst
	b.Adapter = adapter
	b.owned = true
	info := adapter.GetInfo()
	b.name = "gpu/" + strings.TrimSpace(info.Name)
	logger.Infof("using GPU adapter %s (%v)", info.Name, info.BackendType)
	return b, nil
}

// NewBackendFromDevice renders on a device owned by the caller, e.g. the
// viewer's window device.
func NewBackendFromDevice(device *wgpu.Device, opts Options, logger core.Logger) *Backend {
	return newBackend(device, opts, core.Sub(logger, "gpu"))
}

func newBackend(device *wgpu.Device, opts Options, logger core.Logger) *Backend {
	return &Backend{
		buffers: bufferManager{Device: device, Queue: device.GetQueue()},
		opts:    opts,
		logger:  logger,
		name:    "gpu",
	}
}

func (b *Backend) Name() string         { return b.name }
func (b *Backend) Device() *wgpu.Device { return b.buffers.Device }

func (b *Backend) Release() {
	if !b.owned {
		return
	}
	b.buffers.Device.Release()
	if b.Adapter != nil {
		b.Adapter.Release()
	}
	if b.Instance != nil {
		b.Instance.Release()
	}
	b.owned = false
}

// Compile generates, validates and builds the compute pipeline for key.
func (b *Backend) Compile(key pass.ProgramKey) (pass.Program, error) {
	src, err := GenerateWGSL(key)
	if err != nil {
		return nil, err
	}
	if b.opts.ValidateShaders {
		n, err := ValidateWGSL(src)
		if err != nil {
			return nil, fmt.Errorf("gpu: validate %s: %w", key, err)
		}
		b.logger.Debugf("validated %s (%d bytes SPIR-V)", key, n)
	}

	module, err := b.buffers.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Raymarch " + key.String(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: shader module %s: %w", key, err)
	}
	pipeline, err := b.buffers.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Raymarch Pipeline " + key.String(),
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("gpu: pipeline %s: %w", key, err)
	}
	return &gpuProgram{backend: b, key: key, module: module, pipeline: pipeline}, nil
}

func (b *Backend) NewTargets(width, height int) (pass.Targets, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("gpu: invalid target size %dx%d", width, height)
	}
	t := &gpuTargets{backend: b, width: width, height: height}
	n := width * height
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc
	for i := 0; i < 2; i++ {
		if _, err := b.buffers.ensureBuffer(fmt.Sprintf("Colour %d", i), &t.colour[i], nil, usage, 16*n); err != nil {
			t.Release()
			return nil, err
		}
		if _, err := b.buffers.ensureBuffer(fmt.Sprintf("Depth %d", i), &t.depth[i], nil, usage, 8*n); err != nil {
			t.Release()
			return nil, err
		}
	}
	if _, err := b.buffers.ensureBuffer("Colour Staging", &t.colourStaging, nil, wgpu.BufferUsageMapRead, 16*n); err != nil {
		t.Release()
		return nil, err
	}
	if _, err := b.buffers.ensureBuffer("Depth Staging", &t.depthStaging, nil, wgpu.BufferUsageMapRead, 8*n); err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

type gpuProgram struct {
	backend  *Backend
	key      pass.ProgramKey
	module   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

func (p *gpuProgram) Key() pass.ProgramKey { return p.key }

func (p *gpuProgram) Bind(in march.Inputs) (pass.BoundProgram, error) {
	// Same input checks as the CPU marcher.
	if _, err := (&march.Program{Key: p.key}).Bind(in); err != nil {
		return nil, err
	}
	b := p.backend
	bp := &gpuBound{prog: p, width: in.Rays.Width, height: in.Rays.Height, groups: make(map[groupKey]*wgpu.BindGroup)}

	uploads := []struct {
		name  string
		buf   **wgpu.Buffer
		data  []byte
		usage wgpu.BufferUsage
	}{
		{"Params", &bp.params, packParams(in), wgpu.BufferUsageUniform},
		{"Pass", &bp.pass, make([]byte, passSize), wgpu.BufferUsageUniform},
		{"Field", &bp.field, float32sToBytes(in.Field.Data), wgpu.BufferUsageStorage},
		{"LUT", &bp.lut, packLUT(in.TF), wgpu.BufferUsageStorage},
	}
	for _, u := range uploads {
		if _, err := b.buffers.ensureBuffer(u.name, u.buf, u.data, u.usage, 0); err != nil {
			bp.Release()
			return nil, err
		}
	}

	var err error
	bp.group0, err = b.buffers.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: p.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: bp.params, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: bp.pass, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: bp.field, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: bp.lut, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		bp.Release()
		return nil, fmt.Errorf("gpu: bind group 0: %w", err)
	}
	return bp, nil
}

func (p *gpuProgram) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}

type groupKey struct {
	targets  *gpuTargets
	src, dst int
}

type gpuBound struct {
	prog          *gpuProgram
	width, height int

	params, pass, field, lut *wgpu.Buffer
	group0                   *wgpu.BindGroup
	groups                   map[groupKey]*wgpu.BindGroup
}

func (bp *gpuBound) group1(t *gpuTargets, src, dst int) (*wgpu.BindGroup, error) {
	k := groupKey{t, src, dst}
	if g, ok := bp.groups[k]; ok {
		return g, nil
	}
	g, err := bp.prog.backend.buffers.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: bp.prog.pipeline.GetBindGroupLayout(1),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: t.colour[src], Size: wgpu.WholeSize},
			{Binding: 1, Buffer: t.depth[src], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: t.colour[dst], Size: wgpu.WholeSize},
			{Binding: 3, Buffer: t.depth[dst], Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: bind group 1: %w", err)
	}
	bp.groups[k] = g
	return g, nil
}

func (bp *gpuBound) RunPass(p march.PassParams, targets pass.Targets, src, dst int) error {
	t, ok := targets.(*gpuTargets)
	if !ok || t.backend != bp.prog.backend {
		return ErrForeignTargets
	}
	if t.width != bp.width || t.height != bp.height {
		return fmt.Errorf("gpu: %dx%d targets for %dx%d rays", t.width, t.height, bp.width, bp.height)
	}
	if src == dst || src < 0 || src > 1 || dst < 0 || dst > 1 {
		return fmt.Errorf("gpu: invalid target pair %d -> %d", src, dst)
	}

	b := bp.prog.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	g1, err := bp.group1(t, src, dst)
	if err != nil {
		return err
	}
	b.buffers.Queue.WriteBuffer(bp.pass, 0, packPass(p))

	encoder, err := b.buffers.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()
	cPass := encoder.BeginComputePass(nil)
	cPass.SetPipeline(bp.prog.pipeline)
	cPass.SetBindGroup(0, bp.group0, nil)
	cPass.SetBindGroup(1, g1, nil)
	wgX, wgY := dispatchSize(bp.width, bp.height)
	cPass.DispatchWorkgroups(wgX, wgY, 1)
	if err := cPass.End(); err != nil {
		return err
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.buffers.Queue.Submit(cmd)
	cmd.Release()
	b.buffers.waitIdle()
	return nil
}

func (bp *gpuBound) Release() {
	for k, g := range bp.groups {
		g.Release()
		delete(bp.groups, k)
	}
	if bp.group0 != nil {
		bp.group0.Release()
		bp.group0 = nil
	}
	for _, buf := range []**wgpu.Buffer{&bp.params, &bp.pass, &bp.field, &bp.lut} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
}

type gpuTargets struct {
	backend       *Backend
	width, height int

	colour, depth [2]*wgpu.Buffer
	colourStaging *wgpu.Buffer
	depthStaging  *wgpu.Buffer
}

func (t *gpuTargets) Size() (int, int) { return t.width, t.height }

func (t *gpuTargets) Clear(i int) error {
	if i < 0 || i > 1 {
		return fmt.Errorf("gpu: no target %d", i)
	}
	n := t.width * t.height
	depth := make([]float32, 2*n)
	for p := 0; p < n; p++ {
		depth[2*p] = 1
	}
	q := t.backend.buffers.Queue
	q.WriteBuffer(t.colour[i], 0, make([]byte, 16*n))
	q.WriteBuffer(t.depth[i], 0, float32sToBytes(depth))
	return nil
}

func (t *gpuTargets) Read(i int) (*pass.Image, error) {
	if i < 0 || i > 1 {
		return nil, fmt.Errorf("gpu: no target %d", i)
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	n := t.width * t.height
	cb, err := t.backend.buffers.readBuffer(t.colour[i], t.colourStaging, uint64(16*n))
	if err != nil {
		return nil, fmt.Errorf("gpu: read colour: %w", err)
	}
	db, err := t.backend.buffers.readBuffer(t.depth[i], t.depthStaging, uint64(8*n))
	if err != nil {
		return nil, fmt.Errorf("gpu: read depth: %w", err)
	}

	img, err := pass.NewImage(t.width, t.height)
	if err != nil {
		return nil, err
	}
	colour := bytesToFloat32s(cb)
	depth := bytesToFloat32s(db)
	for p := 0; p < n; p++ {
		copy(img.Colour[p][:], colour[4*p:4*p+4])
		img.Depth[p] = depth[2*p]
		img.Covered[p] = depth[2*p+1] != 0
	}
	return img, nil
}

func (t *gpuTargets) Release() {
	bufs := []**wgpu.Buffer{&t.colour[0], &t.colour[1], &t.depth[0], &t.depth[1], &t.colourStaging, &t.depthStaging}
	for _, buf := range bufs {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
}
