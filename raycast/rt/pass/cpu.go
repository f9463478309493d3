package pass

import (
	"fmt"

	"github.com/gekko3d/volrt/raycast/rt/core"
	"github.com/gekko3d/volrt/raycast/rt/march"
)

// TileSize is the edge length of the square pixel tiles the CPU backend
// hands to workers.
const TileSize = 32

// CPUBackend marches rays on a goroutine pool, one task per tile.
type CPUBackend struct {
	pool *WorkerPool
}

func NewCPUBackend(workers int) *CPUBackend {
	return &CPUBackend{pool: NewWorkerPool(workers)}
}

func (b *CPUBackend) Name() string { return fmt.Sprintf("cpu/%d", b.pool.Workers()) }

func (b *CPUBackend) Close() { b.pool.Close() }

func (b *CPUBackend) Compile(key ProgramKey) (Program, error) {
	p, err := march.NewProgram(key)
	if err != nil {
		return nil, err
	}
	return &cpuProgram{prog: p, pool: b.pool}, nil
}

func (b *CPUBackend) NewTargets(width, height int) (Targets, error) {
	imgs, err := NewImages(width, height)
	if err != nil {
		return nil, err
	}
	return &cpuTargets{imgs: imgs}, nil
}

type cpuProgram struct {
	prog *march.Program
	pool *WorkerPool
}

func (p *cpuProgram) Key() ProgramKey { return p.prog.Key }
func (p *cpuProgram) Release()        {}

func (p *cpuProgram) Bind(in march.Inputs) (BoundProgram, error) {
	m, err := p.prog.Bind(in)
	if err != nil {
		return nil, err
	}
	return &cpuBound{m: m, pool: p.pool, rays: in.Rays}, nil
}

type cpuBound struct {
	m    *march.Marcher
	pool *WorkerPool
	rays core.RaySettings
}

func (b *cpuBound) Release() {}

func (b *cpuBound) RunPass(pass march.PassParams, t Targets, src, dst int) error {
	ct, ok := t.(*cpuTargets)
	if !ok {
		return fmt.Errorf("pass: cpu program given %T targets", t)
	}
	in, out := ct.imgs.At(src), ct.imgs.At(dst)
	if in == out {
		return fmt.Errorf("pass: source and destination are the same image")
	}

	rays := b.rays
	tiles := b.pool.Batch()
	for ty := 0; ty < out.Height; ty += TileSize {
		for tx := 0; tx < out.Width; tx += TileSize {
			x0, y0 := tx, ty
			x1, y1 := min(x0+TileSize, out.Width), min(y0+TileSize, out.Height)
			tiles.Go(func() {
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						i := out.Index(x, y)
						entry, hit := rays.Entry(x, y)
						if !hit {
							out.Colour[i] = in.Colour[i]
							out.Depth[i] = in.Depth[i]
							out.Covered[i] = in.Covered[i]
							continue
						}
						res := b.m.MarchPixel(pass, march.PixelInput{
							X:           x,
							Y:           y,
							Entry:       entry,
							StartColour: in.Colour[i],
							StartDepth:  in.Depth[i],
						})
						if res.Discard {
							out.Colour[i] = res.Colour
							out.Depth[i] = 1
							out.Covered[i] = false
							continue
						}
						out.Colour[i] = res.Colour
						out.Depth[i] = res.Depth
						out.Covered[i] = true
					}
				}
			})
		}
	}
	tiles.Wait()
	return nil
}

type cpuTargets struct {
	imgs *Images
}

func (t *cpuTargets) Size() (int, int) {
	return t.imgs.At(0).Width, t.imgs.At(0).Height
}

func (t *cpuTargets) Clear(i int) error {
	if i < 0 || i > 1 {
		return fmt.Errorf("pass: no target %d", i)
	}
	t.imgs.At(i).Clear()
	return nil
}

func (t *cpuTargets) Read(i int) (*Image, error) {
	if i < 0 || i > 1 {
		return nil, fmt.Errorf("pass: no target %d", i)
	}
	return t.imgs.At(i), nil
}

func (t *cpuTargets) Release() {}
