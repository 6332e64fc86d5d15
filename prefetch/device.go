package prefetch

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Noofbiz/superres/imgproc"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// Buffer is tensor memory owned by a Device.
type Buffer interface {
	Shape() []int
	// Float32s copies the buffer contents back to host memory.
	Float32s() ([]float32, error)
	// Bytes is the device memory held by the buffer.
	Bytes() int
	Release()
}

// Device is a transfer target for batches. Alloc is called on the consumer
// goroutine and must be cheap; CopyIn runs on the copy stream and may take
// arbitrarily long.
type Device interface {
	Name() string
	Alloc(shape []int) (Buffer, error)
	CopyIn(dst Buffer, src *imgproc.Tensor) error
	Close() error
}

// ParseDevice maps a device id to a Device:
//
//	"", "cpu", "host"      in-process float32 copy
//	"host-half"            in-process float16 copy
//	"gomlx", "gomlx:N"     gomlx simplego backend, device N
//	"gomlx-half[:N]"       same, stored as float16
func ParseDevice(id string) (Device, error) {
	switch id {
	case "", "cpu", "host":
		return &HostDevice{}, nil
	case "host-half":
		return &HostDevice{Half: true}, nil
	}
	kind, num, hasNum := strings.Cut(id, ":")
	dtype := dtypes.Float32
	switch kind {
	case "gomlx":
	case "gomlx-half":
		dtype = dtypes.Float16
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	n := 0
	if hasNum {
		var err error
		if n, err = strconv.Atoi(num); err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad device number in %q", ErrUnknownDevice, id)
		}
	}
	return NewGoMLXDevice("", n, dtype)
}

// HostDevice copies batches into separately owned host memory. It stands in
// for an accelerator in tests and CPU-only runs.
type HostDevice struct {
	// Half stores buffers as IEEE float16.
	Half bool
	// Latency is the total time a CopyIn takes, spread over the copy.
	Latency time.Duration
}

// hostCopyChunks is the number of pieces a HostDevice copy is split into.
const hostCopyChunks = 4

func (d *HostDevice) Name() string {
	if d.Half {
		return "host-half"
	}
	return "host"
}

func (d *HostDevice) Alloc(shape []int) (Buffer, error) {
	n := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("prefetch: negative dimension in shape %v", shape)
		}
		n *= dim
	}
	b := &hostBuffer{shape: slices.Clone(shape)}
	if d.Half {
		b.f16 = make([]float16.Float16, n)
	} else {
		b.f32 = make([]float32, n)
	}
	return b, nil
}

func (d *HostDevice) CopyIn(dst Buffer, src *imgproc.Tensor) error {
	b, ok := dst.(*hostBuffer)
	if !ok {
		return fmt.Errorf("prefetch: %T is not a host buffer", dst)
	}
	if !slices.Equal(b.shape, src.Shape) {
		return fmt.Errorf("%w: buffer %v, tensor %v", imgproc.ErrShapeMismatch, b.shape, src.Shape)
	}
	b.filled.Store(false)
	n := len(src.Data)
	chunk := (n + hostCopyChunks - 1) / hostCopyChunks
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		if d.Half {
			for i := lo; i < hi; i++ {
				b.f16[i] = float16.Fromfloat32(src.Data[i])
			}
		} else {
			copy(b.f32[lo:hi], src.Data[lo:hi])
		}
		if d.Latency > 0 {
			time.Sleep(d.Latency / hostCopyChunks)
		}
	}
	b.filled.Store(true)
	return nil
}

func (d *HostDevice) Close() error { return nil }

type hostBuffer struct {
	shape  []int
	f32    []float32
	f16    []float16.Float16
	filled atomic.Bool
}

func (b *hostBuffer) Shape() []int { return b.shape }

// Float32s reports ErrNotTransferred until a copy has completed, so reading
// a buffer before its transfer event fired is detected instead of racing.
func (b *hostBuffer) Float32s() ([]float32, error) {
	if !b.filled.Load() {
		return nil, ErrNotTransferred
	}
	if b.f16 == nil {
		return slices.Clone(b.f32), nil
	}
	out := make([]float32, len(b.f16))
	for i, v := range b.f16 {
		out[i] = v.Float32()
	}
	return out, nil
}

func (b *hostBuffer) Bytes() int {
	if b.f16 != nil {
		return 2 * len(b.f16)
	}
	return 4 * len(b.f32)
}

func (b *hostBuffer) Release() {
	b.filled.Store(false)
	b.f32, b.f16 = nil, nil
}
