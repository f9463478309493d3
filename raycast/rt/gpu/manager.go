package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// MapTimeout bounds how long a readback waits for the device.
var MapTimeout = 2 * time.Second

// bufferManager owns buffer creation and readback for one device.
type bufferManager struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
}

// ensureBuffer grows *buf to hold data plus headroom and uploads data. It
// reports whether the buffer was recreated, in which case any bind group
// that references it is stale.
func (m *bufferManager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) (bool, error) {
	neededSize := uint64(len(data) + headroom)
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}
	if neededSize == 0 {
		neededSize = 16
	}

	recreated := false
	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}
		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            name,
			Size:             neededSize,
			Usage:            usage | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			*buf = nil
			return false, fmt.Errorf("create %s buffer: %w", name, err)
		}
		*buf = newBuf
		recreated = true
	}
	if len(data) > 0 {
		m.Queue.WriteBuffer(*buf, 0, data)
	}
	return recreated, nil
}

// readBuffer copies size bytes of src into staging and maps it for reading.
// staging must have been created with MapRead|CopyDst usage.
func (m *bufferManager) readBuffer(src, staging *wgpu.Buffer, size uint64) ([]byte, error) {
	encoder, err := m.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	if err := encoder.CopyBufferToBuffer(src, 0, staging, 0, size); err != nil {
		encoder.Release()
		return nil, err
	}
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	m.Queue.Submit(cmd)
	cmd.Release()

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map status: %d", status)
		}
		close(done)
	})
	if err != nil {
		return nil, err
	}

	timeout := time.After(MapTimeout)
Loop:
	for {
		m.Device.Poll(false, nil)
		select {
		case <-done:
			break Loop
		case <-timeout:
			return nil, fmt.Errorf("map timeout after %v", MapTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	data := staging.GetMappedRange(0, uint(size))
	defer staging.Unmap()
	if data == nil {
		return nil, fmt.Errorf("mapped range nil")
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// waitIdle blocks until submitted work has finished.
func (m *bufferManager) waitIdle() {
	m.Device.Poll(true, nil)
}

func mat4ToBytes(m mgl32.Mat4) []byte {
	buf := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func vec3ToBytesPadded(v mgl32.Vec3) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v[2]))
	return buf
}

func vec4ToBytes(v [4]float32) []byte {
	buf := make([]byte, 16)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func uvec4ToBytes(v [4]uint32) []byte {
	buf := make([]byte, 16)
	for i, u := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], u)
	}
	return buf
}

func ivec4ToBytes(v [4]int32) []byte {
	buf := make([]byte, 16)
	for i, s := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(s))
	}
	return buf
}

func float32sToBytes(fs []float32) []byte {
	buf := make([]byte, 4*len(fs))
	for i, f := range fs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
