package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/volrt"
	"github.com/gekko3d/volrt/raycast/rt/app"
	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/output"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

func init() {
	runtime.LockOSThread()
}

// Planes added by -cp. The first cuts across Z, the next two across Y and X.
var defaultClipPlanes = []volrt.ClipPlaneOptions{
	{Position: 50},
	{Position: 50, Inclination: 90},
	{Position: 50, Azimuth: 90, Inclination: 90},
}

func main() {
	config := flag.String("config", "", "YAML options file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	useGPU := flag.Bool("gpu", false, "Render on the GPU backend")
	viewer := flag.Bool("viewer", false, "Open an interactive window")
	out := flag.String("out", "volrt.png", "Colour output (.png, .tif, .exr)")
	depthOut := flag.String("depth", "", "Optional depth output (.png, .tif, .exr)")
	nifti := flag.String("nifti", "", "NIfTI-1 volume (.nii or .nii.gz)")
	phantom := flag.String("phantom", "nested", "Synthetic volume: "+strings.Join(volume.Phantoms(), ", "))
	size := flag.Int("size", 64, "Phantom edge length in voxels")
	numSteps := flag.Int("ns", 0, "Override numSteps")
	blend := flag.Float64("bf", -1, "Override blendFactor")
	clipPlanes := flag.Int("cp", -1, "Use the first N default clip planes")
	clipMode := flag.String("m", "", "Override clipMode (intersection, union, complement)")
	cmap := flag.String("cmap", "", "Override cmap (builtin name or .cmap file)")
	flag.Parse()

	logger := core.NewDefaultLogger("volrt", *debug)

	opts := volrt.DefaultOptions()
	if *config != "" {
		var err error
		if opts, err = volrt.LoadOptions(*config); err != nil {
			fatal(logger, err)
		}
	}
	if *useGPU {
		opts.Backend = "gpu"
	}
	if *numSteps > 0 {
		opts.NumSteps = *numSteps
	}
	if *blend >= 0 {
		opts.BlendFactor = float32(*blend)
	}
	if *clipPlanes >= 0 {
		n := min(*clipPlanes, core.MaxClipPlanes)
		opts.ClipPlanes = nil
		for i := 0; i < n; i++ {
			if i < len(defaultClipPlanes) {
				opts.ClipPlanes = append(opts.ClipPlanes, defaultClipPlanes[i])
			} else {
				opts.ClipPlanes = append(opts.ClipPlanes, volrt.ClipPlaneOptions{Position: 50})
			}
		}
	}
	if *clipMode != "" {
		m, err := core.ParseClipMode(*clipMode)
		if err != nil {
			fatal(logger, err)
		}
		opts.ClipMode = m
	}
	if *cmap != "" {
		opts.Cmap = *cmap
	}
	if err := opts.Normalize(); err != nil {
		fatal(logger, err)
	}

	field, err := loadField(*nifti, *phantom, *size, logger)
	if err != nil {
		fatal(logger, err)
	}
	opts.Place(field)

	if *viewer {
		runViewer(field, opts, logger)
		return
	}
	if err := renderToFiles(field, opts, *out, *depthOut, logger); err != nil {
		fatal(logger, err)
	}
}

func fatal(logger core.Logger, err error) {
	logger.Errorf("%v", err)
	os.Exit(1)
}

func loadField(nifti, phantom string, size int, logger core.Logger) (*volume.ScalarField, error) {
	if nifti != "" {
		field, info, err := volume.LoadNIfTI(nifti)
		if err != nil {
			return nil, err
		}
		logger.Infof("loaded %s: %v voxels, datatype %d, %q", nifti, info.Shape, info.Datatype, info.Description)
		return field, nil
	}
	return volume.NewPhantom(phantom, size)
}

func renderToFiles(field *volume.ScalarField, opts volrt.Options, out, depthOut string, logger core.Logger) error {
	r, err := volrt.NewRenderer(opts, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	frame, err := opts.Frame(field)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := r.RenderFrame(ctx, frame)
	if err != nil {
		return err
	}
	logger.Infof("frame %s: %d passes, %d/%d pixels covered", res.FrameID, res.Passes,
		res.Image.CoveredCount(), len(res.Image.Covered))
	logger.Debugf("\n%s", r.Profiler().GetStatsString())

	bg := opts.Background
	if err := output.WriteColour(out, res.Image, mgl32.Vec3{bg[0], bg[1], bg[2]}); err != nil {
		return err
	}
	logger.Infof("wrote %s", out)
	if depthOut != "" {
		if err := output.WriteDepth(depthOut, res.Image); err != nil {
			return err
		}
		logger.Infof("wrote %s", depthOut)
	}
	return nil
}

func runViewer(field *volume.ScalarField, opts volrt.Options, logger core.Logger) {
	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(opts.Width, opts.Height, fmt.Sprintf("volrt - %s", field.Name), nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, field, opts, logger)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Close()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button == glfw.MouseButtonLeft {
			application.MouseDown = action == glfw.Press
		}
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if application.MouseDown {
			application.Orbit(float32(xpos-application.MouseX), float32(ypos-application.MouseY))
		}
		application.MouseX = xpos
		application.MouseY = ypos
	})

	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if yoff != 0 {
			application.Zoom(yoff)
		}
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
		if key == glfw.KeyP && action == glfw.Press {
			application.ShowProfiler = !application.ShowProfiler
		}
		if action == glfw.Press || action == glfw.Repeat {
			if key == glfw.KeyEqual || key == glfw.KeyKPAdd {
				application.SetNumSteps(application.NumSteps() + 10)
			}
			if key == glfw.KeyMinus || key == glfw.KeyKPSubtract {
				application.SetNumSteps(application.NumSteps() - 10)
			}
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}
