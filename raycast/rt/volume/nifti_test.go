package volume

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader(shape [3]int, datatype int16) niftiHeader {
	h := niftiHeader{
		SizeofHdr: niftiHeaderSize,
		Datatype:  datatype,
		VoxOffset: 352,
		SclSlope:  1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	h.Dim = [8]int16{3, int16(shape[0]), int16(shape[1]), int16(shape[2]), 1, 1, 1, 1}
	h.Pixdim = [8]float32{1, 2, 2, 3, 1, 1, 1, 1}
	return h
}

func encodeNIfTI(t *testing.T, order binary.ByteOrder, h niftiHeader, data any) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, order, &h))
	buf.Write(make([]byte, 4)) // empty extension flag
	require.NoError(t, binary.Write(&buf, order, data))
	return buf.Bytes()
}

func TestReadNIfTI_Int16WithScaling(t *testing.T) {
	h := testHeader([3]int{2, 2, 2}, dtInt16)
	h.SclSlope = 0.5
	h.SclInter = 10
	copy(h.Descrip[:], "test volume")

	raw := encodeNIfTI(t, binary.LittleEndian, h, []int16{0, 2, 4, 6, 8, 10, 12, 14})
	f, info, err := ReadNIfTI(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, [3]int{2, 2, 2}, f.Shape)
	assert.Equal(t, float32(10), f.At(0, 0, 0))
	assert.Equal(t, float32(11), f.At(1, 0, 0))
	assert.Equal(t, float32(17), f.At(1, 1, 1))
	assert.Equal(t, "test volume", info.Description)
	assert.Equal(t, [3]float32{2, 2, 3}, info.PixDim)

	// No sform/qform: pixdim scaling.
	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 1, 1}, f.VoxelToWorld)
	assert.Equal(t, mgl32.Vec3{2, 2, 3}, p)
}

func TestReadNIfTI_BigEndianSform(t *testing.T) {
	h := testHeader([3]int{3, 1, 1}, dtFloat32)
	h.SformCode = 1
	h.SrowX = [4]float32{-1, 0, 0, 90}
	h.SrowY = [4]float32{0, 1, 0, -126}
	h.SrowZ = [4]float32{0, 0, 1, -72}

	raw := encodeNIfTI(t, binary.BigEndian, h, []float32{1.5, 2.5, 3.5})
	f, _, err := ReadNIfTI(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5, 3.5}, f.Data)
	assert.True(t, f.Is2D())

	p := mgl32.TransformCoordinate(mgl32.Vec3{2, 0, 0}, f.VoxelToWorld)
	assert.Equal(t, mgl32.Vec3{88, -126, -72}, p)
}

func TestReadNIfTI_Errors(t *testing.T) {
	_, _, err := ReadNIfTI(bytes.NewReader(make([]byte, 10)))
	assert.ErrorIs(t, err, ErrNotNIfTI)

	h := testHeader([3]int{1, 1, 1}, 1536) // float128
	raw := encodeNIfTI(t, binary.LittleEndian, h, []float64{0, 0})
	_, _, err = ReadNIfTI(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrUnsupportedDatatype)

	h = testHeader([3]int{1, 1, 1}, dtUint8)
	h.Magic = [4]byte{'n', 'i', '1', 0}
	raw = encodeNIfTI(t, binary.LittleEndian, h, []uint8{0})
	_, _, err = ReadNIfTI(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrNotNIfTI)
}

func TestReadNIfTI_OversizedDims(t *testing.T) {
	tests := []struct {
		name  string
		shape [3]int
		want  error
	}{
		{"above the voxel limit", [3]int{32767, 32767, 32767}, ErrTooLarge},
		// Within the limit, but the stream holds a single voxel.
		{"truncated data", [3]int{1024, 1024, 64}, ErrNotNIfTI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := encodeNIfTI(t, binary.LittleEndian, testHeader(tt.shape, dtFloat32), []float32{1})
			f, _, err := ReadNIfTI(bytes.NewReader(raw))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, f)
		})
	}
}

func TestLoadNIfTI_Gzip(t *testing.T) {
	h := testHeader([3]int{2, 1, 1}, dtUint8)
	raw := encodeNIfTI(t, binary.LittleEndian, h, []uint8{3, 200})

	path := filepath.Join(t.TempDir(), "brain.nii.gz")
	out, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(out)
	_, err = gz.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, out.Close())

	f, _, err := LoadNIfTI(path)
	require.NoError(t, err)
	assert.Equal(t, "brain", f.Name)
	assert.Equal(t, []float32{3, 200}, f.Data)
}
