package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/gzip"
)

var (
	ErrNotNIfTI            = errors.New("volume: not a NIfTI-1 file")
	ErrUnsupportedDatatype = errors.New("volume: unsupported NIfTI datatype")
	ErrTooLarge            = errors.New("volume: NIfTI image too large")
)

const niftiHeaderSize = 348

// MaxVoxels bounds the first volume of a NIfTI image.
const MaxVoxels = 1 << 28

// NIfTI-1 datatype codes.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

var voxelBytes = map[int]int{
	dtUint8:   1,
	dtInt8:    1,
	dtInt16:   2,
	dtUint16:  2,
	dtInt32:   4,
	dtUint32:  4,
	dtFloat32: 4,
	dtFloat64: 8,
}

// niftiHeader is the 348 byte NIfTI-1 header, laid out as on disk.
type niftiHeader struct {
	SizeofHdr    int32
	DataType     [10]byte
	DbName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte
	Dim          [8]int16
	IntentP1     float32
	IntentP2     float32
	IntentP3     float32
	IntentCode   int16
	Datatype     int16
	Bitpix       int16
	SliceStart   int16
	Pixdim       [8]float32
	VoxOffset    float32
	SclSlope     float32
	SclInter     float32
	SliceEnd     int16
	SliceCode    byte
	XyztUnits    byte
	CalMax       float32
	CalMin       float32
	SliceDur     float32
	Toffset      float32
	Glmax        int32
	Glmin        int32
	Descrip      [80]byte
	AuxFile      [24]byte
	QformCode    int16
	SformCode    int16
	QuaternB     float32
	QuaternC     float32
	QuaternD     float32
	QoffsetX     float32
	QoffsetY     float32
	QoffsetZ     float32
	SrowX        [4]float32
	SrowY        [4]float32
	SrowZ        [4]float32
	IntentName   [16]byte
	Magic        [4]byte
}

// NIfTIInfo is the subset of header fields a caller may want to inspect.
type NIfTIInfo struct {
	Shape       [3]int
	Volumes     int
	Datatype    int
	PixDim      [3]float32
	Description string
	// DisplayRange is cal_min/cal_max; zero when unset.
	DisplayRange [2]float32
}

// LoadNIfTI reads a .nii or .nii.gz file. Only the first volume of a 4-D
// image is loaded.
func LoadNIfTI(path string) (*ScalarField, *NIfTIInfo, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()

	var r io.Reader = bufio.NewReader(fh)
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	f, info, err := ReadNIfTI(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	f.Name = strings.TrimSuffix(name, ".nii")
	return f, info, nil
}

// ReadNIfTI decodes a single-file NIfTI-1 stream (header followed by data).
func ReadNIfTI(r io.Reader) (*ScalarField, *NIfTIInfo, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotNIfTI, err)
	}

	order, err := headerByteOrder(raw)
	if err != nil {
		return nil, nil, err
	}
	var hdr niftiHeader
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, nil, err
	}
	if string(hdr.Magic[:3]) != "n+1" {
		return nil, nil, fmt.Errorf("%w: magic %q (detached headers are not supported)", ErrNotNIfTI, hdr.Magic[:3])
	}

	ndim := int(hdr.Dim[0])
	if ndim < 1 || ndim > 7 {
		return nil, nil, fmt.Errorf("%w: %d dimensions", ErrNotNIfTI, ndim)
	}
	shape := [3]int{1, 1, 1}
	for a := 0; a < 3 && a < ndim; a++ {
		shape[a] = int(hdr.Dim[a+1])
		if shape[a] < 1 {
			return nil, nil, fmt.Errorf("%w: dim[%d] = %d", ErrNotNIfTI, a+1, shape[a])
		}
	}
	n := shape[0] * shape[1] * shape[2]
	if n > MaxVoxels {
		return nil, nil, fmt.Errorf("%w: %dx%dx%d voxels", ErrTooLarge, shape[0], shape[1], shape[2])
	}
	size, ok := voxelBytes[int(hdr.Datatype)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedDatatype, hdr.Datatype)
	}
	volumes := 1
	for a := 3; a < ndim; a++ {
		if d := int(hdr.Dim[a+1]); d > 1 {
			volumes *= d
		}
	}

	// Skip extensions up to the data offset.
	if skip := int64(hdr.VoxOffset) - niftiHeaderSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, nil, fmt.Errorf("%w: short extension block: %v", ErrNotNIfTI, err)
		}
	}

	// The buffer grows with what the stream holds, so a header that
	// overstates its dimensions fails before the field is allocated.
	data, err := io.ReadAll(io.LimitReader(r, int64(n)*int64(size)))
	if err != nil {
		return nil, nil, fmt.Errorf("reading %d voxels: %w", n, err)
	}
	if len(data) < n*size {
		return nil, nil, fmt.Errorf("%w: %d of %d data bytes", ErrNotNIfTI, len(data), n*size)
	}
	f := NewScalarField(shape)
	if err := readVoxels(bytes.NewReader(data), order, int(hdr.Datatype), f.Data); err != nil {
		return nil, nil, err
	}

	if hdr.SclSlope != 0 && !(hdr.SclSlope == 1 && hdr.SclInter == 0) {
		for i, v := range f.Data {
			f.Data[i] = v*hdr.SclSlope + hdr.SclInter
		}
	}

	f.VoxelToWorld = hdr.affine()

	info := &NIfTIInfo{
		Shape:        shape,
		Volumes:      volumes,
		Datatype:     int(hdr.Datatype),
		PixDim:       [3]float32{hdr.Pixdim[1], hdr.Pixdim[2], hdr.Pixdim[3]},
		Description:  strings.TrimRight(string(hdr.Descrip[:]), "\x00 "),
		DisplayRange: [2]float32{hdr.CalMin, hdr.CalMax},
	}
	return f, info, nil
}

func headerByteOrder(raw []byte) (binary.ByteOrder, error) {
	if binary.LittleEndian.Uint32(raw[0:4]) == niftiHeaderSize {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(raw[0:4]) == niftiHeaderSize {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: bad header size", ErrNotNIfTI)
}

func readVoxels(r io.Reader, order binary.ByteOrder, datatype int, out []float32) error {
	n := len(out)
	var err error
	switch datatype {
	case dtUint8:
		buf := make([]uint8, n)
		err = binary.Read(r, order, buf)
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtInt8:
		buf := make([]int8, n)
		err = binary.Read(r, order, buf)
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtInt16:
		buf := make([]int16, n)
		err = binary.Read(r, order, buf)
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtUint16:
		buf := make([]uint16, n)
		err = binary.Read(r, order, buf)
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtInt32:
		buf := make([]int32, n)
		err = binary.Read(r, order, buf)
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtUint32:
		buf := make([]uint32, n)
		err = binary.Read(r, order, buf)
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtFloat32:
		err = binary.Read(r, order, out)
	case dtFloat64:
		buf := make([]float64, n)
		err = binary.Read(r, order, buf)
		for i, v := range buf {
			out[i] = float32(v)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedDatatype, datatype)
	}
	if err != nil {
		return fmt.Errorf("reading %d voxels: %w", n, err)
	}
	return nil
}

// affine returns the voxel to world transform: the sform when present, then
// the qform, else a plain pixdim scaling.
func (h *niftiHeader) affine() mgl32.Mat4 {
	if h.SformCode > 0 {
		return mgl32.Mat4FromRows(
			mgl32.Vec4(h.SrowX),
			mgl32.Vec4(h.SrowY),
			mgl32.Vec4(h.SrowZ),
			mgl32.Vec4{0, 0, 0, 1},
		)
	}

	dx, dy, dz := pixdimOrOne(h.Pixdim[1]), pixdimOrOne(h.Pixdim[2]), pixdimOrOne(h.Pixdim[3])
	if h.QformCode <= 0 {
		return mgl32.Scale3D(dx, dy, dz)
	}

	b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// Pure 180 degree rotation.
		n := math.Sqrt(b*b + c*c + d*d)
		b, c, d = b/n, c/n, d/n
		a = 0
	} else {
		a = math.Sqrt(a)
	}
	qfac := float32(1)
	if h.Pixdim[0] < 0 {
		qfac = -1
	}
	rot := mgl32.Quat{W: float32(a), V: mgl32.Vec3{float32(b), float32(c), float32(d)}}.Mat4()
	m := rot.Mul4(mgl32.Scale3D(dx, dy, dz*qfac))
	m.SetCol(3, mgl32.Vec4{h.QoffsetX, h.QoffsetY, h.QoffsetZ, 1})
	return m
}

func pixdimOrOne(v float32) float32 {
	if v <= 0 {
		return 1
	}
	return v
}
