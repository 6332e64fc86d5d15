package prefetch

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync/atomic"

	"github.com/Noofbiz/superres/imgproc"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// GoMLXDevice materializes batches as gomlx tensors on one device of a
// backend.
type GoMLXDevice struct {
	backend   backends.Backend
	deviceNum backends.DeviceNum
	dtype     dtypes.DType
}

// NewGoMLXDevice creates a simplego backend with the given configuration
// ("" for defaults). dtype must be Float32 or Float16.
func NewGoMLXDevice(config string, deviceNum int, dtype dtypes.DType) (*GoMLXDevice, error) {
	if dtype != dtypes.Float32 && dtype != dtypes.Float16 {
		return nil, fmt.Errorf("prefetch: unsupported device dtype %s", dtype)
	}
	backend, err := simplego.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gomlx simplego backend: %w", err)
	}
	return &GoMLXDevice{backend: backend, deviceNum: backends.DeviceNum(deviceNum), dtype: dtype}, nil
}

func (d *GoMLXDevice) Name() string {
	return fmt.Sprintf("gomlx:%s:%d", d.backend.Name(), d.deviceNum)
}

// DType is the element type buffers are stored as.
func (d *GoMLXDevice) DType() dtypes.DType { return d.dtype }

func (d *GoMLXDevice) Alloc(shape []int) (Buffer, error) {
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("prefetch: negative dimension in shape %v", shape)
		}
	}
	return &gomlxBuffer{
		shape:  slices.Clone(shape),
		tensor: tensors.FromShape(shapes.Make(d.dtype, shape...)),
	}, nil
}

func (d *GoMLXDevice) CopyIn(dst Buffer, src *imgproc.Tensor) (err error) {
	b, ok := dst.(*gomlxBuffer)
	if !ok {
		return fmt.Errorf("prefetch: %T is not a gomlx buffer", dst)
	}
	if !slices.Equal(b.shape, src.Shape) {
		return fmt.Errorf("%w: buffer %v, tensor %v", imgproc.ErrShapeMismatch, b.shape, src.Shape)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("prefetch: gomlx transfer to %s: %v", d.Name(), r)
		}
	}()
	b.filled.Store(false)
	b.tensor.MutableFlatData(func(flat any) {
		switch data := flat.(type) {
		case []float32:
			copy(data, src.Data)
		case []float16.Float16:
			for i, v := range src.Data {
				data[i] = float16.Fromfloat32(v)
			}
		}
	})
	b.tensor.MaterializeOnDevices(d.backend, false, d.deviceNum)
	b.filled.Store(true)
	return nil
}

func (d *GoMLXDevice) Close() error {
	d.backend.Finalize()
	return nil
}

type gomlxBuffer struct {
	shape  []int
	tensor *tensors.Tensor
	filled atomic.Bool
}

func (b *gomlxBuffer) Shape() []int { return b.shape }

// Tensor is the underlying gomlx tensor, for feeding straight into a graph.
func (b *gomlxBuffer) Tensor() *tensors.Tensor { return b.tensor }

func (b *gomlxBuffer) Float32s() ([]float32, error) {
	if !b.filled.Load() {
		return nil, ErrNotTransferred
	}
	var out []float32
	b.tensor.ConstFlatData(func(flat any) {
		switch data := flat.(type) {
		case []float32:
			out = slices.Clone(data)
		case []float16.Float16:
			out = make([]float32, len(data))
			for i, v := range data {
				out[i] = v.Float32()
			}
		}
	})
	return out, nil
}

func (b *gomlxBuffer) Bytes() int {
	if b.tensor == nil {
		return 0
	}
	return int(b.tensor.Shape().Memory())
}

func (b *gomlxBuffer) Release() {
	b.filled.Store(false)
	if b.tensor != nil {
		b.tensor.FinalizeAll()
		b.tensor = nil
	}
}

// GoMLXDataset exposes a Loader as a gomlx train.Dataset: inputs are the
// LR batch and labels the HR batch, both shaped [N, 1, H, W].
type GoMLXDataset struct {
	name string
	host *HostPrefetcher
}

var _ train.Dataset = (*GoMLXDataset)(nil)

// NewGoMLXDataset starts the first epoch of loader.
func NewGoMLXDataset(ctx context.Context, name string, loader *Loader) (*GoMLXDataset, error) {
	host, err := NewHostPrefetcher(ctx, loader)
	if err != nil {
		return nil, err
	}
	return &GoMLXDataset{name: name, host: host}, nil
}

func (d *GoMLXDataset) Name() string { return d.name }

// Yield returns io.EOF at the end of an epoch.
func (d *GoMLXDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	b, err := d.host.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	if b == nil {
		return nil, nil, nil, io.EOF
	}
	lr, hr := b.LR(), b.HR()
	inputs = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(lr.Data, lr.Shape...)}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(hr.Data, hr.Shape...)}
	return d, inputs, labels, nil
}

// Reset restarts from the first batch.
func (d *GoMLXDataset) Reset() {
	if err := d.host.Reset(); err != nil {
		klog.Errorf("%s: reset failed: %v", d.name, err)
	}
}

// Close stops the producer.
func (d *GoMLXDataset) Close() { d.host.Close() }
