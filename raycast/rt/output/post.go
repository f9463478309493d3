package output

import (
	"fmt"
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"

	"github.com/gekko3d/volrt/raycast/rt/pass"
)

// ScaledSize returns the render size for a display size and a resolution
// percentage, never smaller than one pixel.
func ScaledSize(width, height int, percent float32) (int, int) {
	if percent <= 0 || percent >= 100 {
		return width, height
	}
	w := int(float32(width)*percent/100 + 0.5)
	h := int(float32(height)*percent/100 + 0.5)
	return max(w, 1), max(h, 1)
}

// Upscale resizes img to width x height. Colour is filtered bilinearly; depth
// and coverage use the nearest source pixel.
func Upscale(img *pass.Image, width, height int) (*pass.Image, error) {
	if img.Width == width && img.Height == height {
		return img.Clone(), nil
	}
	out, err := pass.NewImage(width, height)
	if err != nil {
		return nil, err
	}
	dstRect := image.Rect(0, 0, width, height)

	colour := image.NewRGBA64(dstRect)
	xdraw.ApproxBiLinear.Scale(colour, dstRect, ToRGBA64(img), image.Rect(0, 0, img.Width, img.Height), xdraw.Src, nil)

	depth := image.NewGray16(dstRect)
	xdraw.NearestNeighbor.Scale(depth, dstRect, DepthGray16(img), image.Rect(0, 0, img.Width, img.Height), xdraw.Src, nil)

	mask := image.NewAlpha(dstRect)
	xdraw.NearestNeighbor.Scale(mask, dstRect, coverageMask(img), image.Rect(0, 0, img.Width, img.Height), xdraw.Src, nil)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := out.Index(x, y)
			c := colour.RGBA64At(x, y)
			out.Colour[i] = mgl32.Vec4{
				float32(c.R) / 0xffff,
				float32(c.G) / 0xffff,
				float32(c.B) / 0xffff,
				float32(c.A) / 0xffff,
			}
			out.Depth[i] = float32(depth.Gray16At(x, y).Y) / 0xffff
			out.Covered[i] = mask.AlphaAt(x, y).A != 0
		}
	}
	return out, nil
}

// Smooth applies a separable box filter of the given radius to the colour
// channels. Depth and coverage are left alone.
func Smooth(img *pass.Image, radius int) (*pass.Image, error) {
	if radius < 0 {
		return nil, fmt.Errorf("output: negative smoothing radius %d", radius)
	}
	out := img.Clone()
	if radius == 0 {
		return out, nil
	}
	tmp := make([]mgl32.Vec4, len(img.Colour))
	boxPass(img.Colour, tmp, img.Width, img.Height, radius, 1, img.Width)
	boxPass(tmp, out.Colour, img.Height, img.Width, radius, img.Width, 1)
	return out, nil
}

// boxPass averages along lines of length n. step moves along a line and
// lineStep between lines.
func boxPass(src, dst []mgl32.Vec4, n, lines, radius, step, lineStep int) {
	for l := 0; l < lines; l++ {
		base := l * lineStep
		for i := 0; i < n; i++ {
			lo := max(i-radius, 0)
			hi := min(i+radius, n-1)
			var sum mgl32.Vec4
			for k := lo; k <= hi; k++ {
				sum = sum.Add(src[base+k*step])
			}
			dst[base+i*step] = sum.Mul(1 / float32(hi-lo+1))
		}
	}
}

func to16(v float32) uint16 {
	return uint16(mgl32.Clamp(v, 0, 1)*0xffff + 0.5)
}

// ToRGBA64 converts the premultiplied colour of img.
func ToRGBA64(img *pass.Image) *image.RGBA64 {
	m := image.NewRGBA64(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.Colour[img.Index(x, y)]
			a := to16(c[3])
			m.SetRGBA64(x, y, color.RGBA64{
				R: min(to16(c[0]), a),
				G: min(to16(c[1]), a),
				B: min(to16(c[2]), a),
				A: a,
			})
		}
	}
	return m
}

// DepthGray16 maps window depth [0,1] to 16-bit grey.
func DepthGray16(img *pass.Image) *image.Gray16 {
	m := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			m.SetGray16(x, y, color.Gray16{Y: to16(img.Depth[img.Index(x, y)])})
		}
	}
	return m
}

func coverageMask(img *pass.Image) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, img.Width, img.Height))
	for i, c := range img.Covered {
		if c {
			m.Pix[i] = 0xff
		}
	}
	return m
}

// Composite blends the premultiplied image over an opaque background.
func Composite(img *pass.Image, background mgl32.Vec3) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.Colour[img.Index(x, y)]
			a := mgl32.Clamp(c[3], 0, 1)
			var rgb [3]uint8
			for k := 0; k < 3; k++ {
				v := c[k] + background[k]*(1-a)
				rgb[k] = uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
			}
			m.SetNRGBA(x, y, color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff})
		}
	}
	return m
}
