package pass

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Image is one colour + depth render target. Colour is premultiplied.
// Pixels with Covered unset were discarded and hold zero colour and depth 1.
type Image struct {
	Width, Height int
	Colour        []mgl32.Vec4
	Depth         []float32
	Covered       []bool
}

func NewImage(width, height int) (*Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("pass: invalid image size %dx%d", width, height)
	}
	n := width * height
	img := &Image{
		Width:   width,
		Height:  height,
		Colour:  make([]mgl32.Vec4, n),
		Depth:   make([]float32, n),
		Covered: make([]bool, n),
	}
	img.Clear()
	return img, nil
}

// Clear resets every pixel to the discarded state.
func (img *Image) Clear() {
	for i := range img.Colour {
		img.Colour[i] = mgl32.Vec4{}
		img.Depth[i] = 1
		img.Covered[i] = false
	}
}

func (img *Image) Index(x, y int) int { return y*img.Width + x }

// CoveredCount is the number of pixels that received a contribution.
func (img *Image) CoveredCount() int {
	n := 0
	for _, c := range img.Covered {
		if c {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := &Image{
		Width:   img.Width,
		Height:  img.Height,
		Colour:  append([]mgl32.Vec4(nil), img.Colour...),
		Depth:   append([]float32(nil), img.Depth...),
		Covered: append([]bool(nil), img.Covered...),
	}
	return out
}

// Images is a ping-pong pair. A pass reads one and writes the other.
type Images struct {
	pair [2]*Image
}

func NewImages(width, height int) (*Images, error) {
	a, err := NewImage(width, height)
	if err != nil {
		return nil, err
	}
	b, err := NewImage(width, height)
	if err != nil {
		return nil, err
	}
	return &Images{pair: [2]*Image{a, b}}, nil
}

func (p *Images) At(i int) *Image { return p.pair[i] }
