package output

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/gekko3d/volrt/raycast/rt/pass"
)

func testImage(t *testing.T, w, h int) *pass.Image {
	t.Helper()
	img, err := pass.NewImage(w, h)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				i := img.Index(x, y)
				img.Colour[i] = mgl32.Vec4{0.5, 0.25, 0, 0.5}
				img.Depth[i] = 0.25
				img.Covered[i] = true
			}
		}
	}
	return img
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h    int
		percent float32
		ww, wh  int
	}{
		{640, 480, 100, 640, 480},
		{640, 480, 50, 320, 240},
		{640, 480, 0, 640, 480},
		{3, 3, 10, 1, 1},
	}
	for _, tt := range tests {
		w, h := ScaledSize(tt.w, tt.h, tt.percent)
		assert.Equal(t, tt.ww, w)
		assert.Equal(t, tt.wh, h)
	}
}

func TestUpscale(t *testing.T) {
	src := testImage(t, 4, 2)
	out, err := Upscale(src, 8, 4)
	require.NoError(t, err)
	assert.Equal(t, 8, out.Width)
	assert.Equal(t, 4, out.Height)

	left := out.Index(0, 0)
	assert.True(t, out.Covered[left])
	assert.InDelta(t, 0.25, out.Depth[left], 1e-4)
	assert.InDelta(t, 0.5, out.Colour[left][3], 1e-3)

	right := out.Index(7, 3)
	assert.False(t, out.Covered[right])
	assert.InDelta(t, 1, out.Depth[right], 1e-4)
	assert.InDelta(t, 0, out.Colour[right][3], 1e-3)
}

func TestUpscale_SameSizeCopies(t *testing.T) {
	src := testImage(t, 4, 2)
	out, err := Upscale(src, 4, 2)
	require.NoError(t, err)
	out.Colour[0] = mgl32.Vec4{}
	assert.Equal(t, float32(0.5), src.Colour[0][3])
}

func TestSmooth(t *testing.T) {
	src := testImage(t, 6, 3)
	out, err := Smooth(src, 1)
	require.NoError(t, err)

	// Interior of the covered half is unchanged, the edge is blurred.
	assert.InDelta(t, 0.5, out.Colour[out.Index(1, 1)][3], 1e-6)
	assert.InDelta(t, 0.5/3, out.Colour[out.Index(3, 1)][3], 1e-6)
	assert.Equal(t, src.Depth, out.Depth)
	assert.Equal(t, src.Covered, out.Covered)

	_, err = Smooth(src, -1)
	assert.Error(t, err)
}

func TestComposite(t *testing.T) {
	src := testImage(t, 2, 1)
	m := Composite(src, mgl32.Vec3{1, 1, 1})
	c := m.NRGBAAt(0, 0)
	// 0.5 premultiplied red over white at alpha 0.5.
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(191), c.G)
	assert.Equal(t, uint8(128), c.B)
	assert.Equal(t, uint8(255), c.A)

	bg := m.NRGBAAt(1, 0)
	assert.Equal(t, uint8(255), bg.R)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("a/b.TIFF")
	require.NoError(t, err)
	assert.Equal(t, FormatTIFF, f)
	_, err = FormatFromPath("out.jpg")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	img := testImage(t, 4, 4)

	pngPath := filepath.Join(dir, "colour.png")
	require.NoError(t, WriteColour(pngPath, img, mgl32.Vec3{}))
	f, err := os.Open(pngPath)
	require.NoError(t, err)
	m, err := png.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, 4, m.Bounds().Dx())

	tifPath := filepath.Join(dir, "depth.tif")
	require.NoError(t, WriteDepth(tifPath, img))
	f, err = os.Open(tifPath)
	require.NoError(t, err)
	d, err := tiff.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, 4, d.Bounds().Dy())

	exrPath := filepath.Join(dir, "colour.exr")
	require.NoError(t, WriteColour(exrPath, img, mgl32.Vec3{}))
	e, err := exr.DecodeFile(exrPath)
	require.NoError(t, err)
	_, _, _, a := e.RGBA(0, 0)
	assert.InDelta(t, 0.5, a, 1e-3)

	require.NoError(t, WriteDepth(filepath.Join(dir, "depth.exr"), img))
	assert.ErrorIs(t, WriteDepth(filepath.Join(dir, "depth.bmp"), img), ErrUnknownFormat)
}
