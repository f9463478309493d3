package output

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mrjoshuak/go-openexr/exr"
	"golang.org/x/image/tiff"

	"github.com/gekko3d/volrt/raycast/rt/pass"
)

var ErrUnknownFormat = errors.New("output: unknown image format")

// Format is chosen from a file extension.
type Format int

const (
	FormatPNG Format = iota
	FormatTIFF
	FormatEXR
)

func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".exr":
		return FormatEXR, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// WriteColour saves the colour of img. PNG is composited over background;
// TIFF keeps 16-bit premultiplied RGBA; EXR keeps half-float premultiplied
// RGBA.
func WriteColour(path string, img *pass.Image, background mgl32.Vec3) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatEXR:
		return exr.EncodeFile(path, colourEXR(img))
	case FormatTIFF:
		return writeImage(path, ToRGBA64(img), format)
	default:
		return writeImage(path, Composite(img, background), format)
	}
}

// WriteDepth saves the depth image. Uncovered pixels hold depth 1. The EXR
// form stores depth in RGB and coverage in A.
func WriteDepth(path string, img *pass.Image) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if format == FormatEXR {
		return exr.EncodeFile(path, depthEXR(img))
	}
	return writeImage(path, DepthGray16(img), format)
}

func writeImage(path string, m image.Image, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatTIFF:
		err = tiff.Encode(f, m, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(f, m)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

func colourEXR(img *pass.Image) *exr.RGBAImage {
	m := exr.NewRGBAImage(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.Colour[img.Index(x, y)]
			m.SetRGBA(x, y, c[0], c[1], c[2], c[3])
		}
	}
	return m
}

func depthEXR(img *pass.Image) *exr.RGBAImage {
	m := exr.NewRGBAImage(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := img.Index(x, y)
			var covered float32
			if img.Covered[i] {
				covered = 1
			}
			d := img.Depth[i]
			m.SetRGBA(x, y, d, d, d, covered)
		}
	}
	return m
}
