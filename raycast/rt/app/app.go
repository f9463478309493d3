package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/volrt"
	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/gpu"
	"github.com/gekko3d/volrt/raycast/rt/output"
	"github.com/gekko3d/volrt/raycast/rt/shaders"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

// App shows a field in a window and re-renders it whenever the view
// changes. Stale frames are abandoned between passes.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	RenderPipeline *wgpu.RenderPipeline
	FrameTexture   *wgpu.Texture
	FrameView      *wgpu.TextureView
	Sampler        *wgpu.Sampler
	RenderBG       *wgpu.BindGroup

	Renderer *volrt.Renderer
	Options  volrt.Options
	Field    *volume.ScalarField
	Camera   *core.CameraState
	Logger   core.Logger

	frame volrt.Frame
	dirty bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	pending *volrt.Result
	wg      sync.WaitGroup

	MouseDown    bool
	MouseX       float64
	MouseY       float64
	ShowProfiler bool
}

func NewApp(window *glfw.Window, field *volume.ScalarField, opts volrt.Options, logger core.Logger) *App {
	return &App{
		Window:  window,
		Field:   field,
		Options: opts,
		Camera:  opts.NewCamera(field),
		Logger:  core.OrNop(logger),
		dirty:   true,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return errors.New("app: surface has no usable formats")
	}
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	fsModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL},
	})
	if err != nil {
		return err
	}
	a.RenderPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     fsModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	a.Sampler, err = a.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	// The GPU backend shares the window's device.
	if a.Options.Backend == "gpu" {
		b := gpu.NewBackendFromDevice(a.Device, gpu.Options{ValidateShaders: a.Options.ValidateShaders}, a.Logger)
		a.Renderer = volrt.NewRendererWithBackend(b, a.Logger)
	} else {
		a.Renderer, err = volrt.NewRenderer(a.Options, a.Logger)
		if err != nil {
			return err
		}
	}

	a.frame, err = a.Options.Frame(a.Field)
	if err != nil {
		return err
	}
	return a.setupFrameTexture(width, height)
}

func (a *App) setupFrameTexture(w, h int) error {
	if a.RenderBG != nil {
		a.RenderBG.Release()
	}
	if a.FrameView != nil {
		a.FrameView.Release()
	}
	if a.FrameTexture != nil {
		a.FrameTexture.Release()
	}

	var err error
	a.FrameTexture, err = a.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Frame Tex",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	a.FrameView, err = a.FrameTexture.CreateView(nil)
	if err != nil {
		return err
	}
	a.RenderBG, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.RenderPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.FrameView},
			{Binding: 1, Sampler: a.Sampler},
		},
	})
	if err != nil {
		return err
	}
	a.frame.Width, a.frame.Height = w, h
	a.dirty = true
	return nil
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	if err := a.setupFrameTexture(w, h); err != nil {
		a.Logger.Errorf("resize to %dx%d: %v", w, h, err)
	}
}

// Orbit rotates the camera by a mouse delta in pixels.
func (a *App) Orbit(dx, dy float32) {
	a.Camera.Orbit(dx, dy)
	a.dirty = true
}

func (a *App) Zoom(steps float64) {
	factor := float32(1.1)
	if steps < 0 {
		factor = 1 / factor
	}
	a.Camera.Zoom = mgl32.Clamp(a.Camera.Zoom*factor, 0.1, 20)
	a.dirty = true
}

// SetNumSteps changes the ray sample count, keeping it within range.
func (a *App) SetNumSteps(n int) {
	n = min(max(n, volrt.MinNumSteps), volrt.MaxNumSteps)
	if n == a.frame.NumSteps {
		return
	}
	a.frame.NumSteps = n
	a.frame.StepsPerPass = min(a.Options.StepsPerPass, n)
	a.Logger.Infof("numSteps %d", n)
	a.dirty = true
}

func (a *App) NumSteps() int { return a.frame.NumSteps }

// Update starts a new render when the view changed, abandoning the one in
// flight.
func (a *App) Update() {
	if !a.dirty {
		return
	}
	a.dirty = false

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	f := a.frame
	cam := *a.Camera
	f.Camera = &cam

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res, err := a.Renderer.RenderFrame(ctx, f)
		if err != nil {
			if !errors.Is(err, volrt.ErrCancelled) {
				a.Logger.Errorf("render: %v", err)
			}
			return
		}
		a.mu.Lock()
		if ctx.Err() == nil {
			a.pending = res
		}
		a.mu.Unlock()
	}()
}

// upload copies a finished frame into the display texture.
func (a *App) upload() {
	a.mu.Lock()
	res := a.pending
	a.pending = nil
	a.mu.Unlock()
	if res == nil {
		return
	}
	img := res.Image
	if img.Width != a.frame.Width || img.Height != a.frame.Height {
		return
	}
	bg := a.Options.Background
	rgba := output.Composite(img, mgl32.Vec3{bg[0], bg[1], bg[2]})
	a.Queue.WriteTexture(a.FrameTexture.AsImageCopy(), rgba.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(rgba.Stride),
		RowsPerImage: uint32(img.Height),
	}, &wgpu.Extent3D{Width: uint32(img.Width), Height: uint32(img.Height), DepthOrArrayLayers: 1})

	if a.ShowProfiler {
		fmt.Print(a.Renderer.Profiler().GetStatsString())
	}
}

func (a *App) Render() {
	a.upload()

	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.Logger.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}
	defer encoder.Release()

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rPass.SetPipeline(a.RenderPipeline)
	rPass.SetBindGroup(0, a.RenderBG, nil)
	rPass.Draw(3, 1, 0, 0)
	if err := rPass.End(); err != nil {
		a.Logger.Errorf("render pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.Logger.Errorf("encoder Finish failed: %v", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()
}

// Close abandons any render in flight and releases GPU resources.
func (a *App) Close() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()
	a.wg.Wait()

	if a.Renderer != nil {
		a.Renderer.Close()
	}
	if a.RenderBG != nil {
		a.RenderBG.Release()
	}
	if a.FrameView != nil {
		a.FrameView.Release()
	}
	if a.FrameTexture != nil {
		a.FrameTexture.Release()
	}
	if a.Sampler != nil {
		a.Sampler.Release()
	}
	if a.RenderPipeline != nil {
		a.RenderPipeline.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}
