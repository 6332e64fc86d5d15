package datasets

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/Noofbiz/superres/imgproc"
)

// Tensor keys of a Batch.
const (
	KeyLR = "lr"
	KeyHR = "hr"
)

// Batch is a group of samples plus their stacked [N, 1, H, W] tensors.
type Batch struct {
	// Index is the position of the batch within its epoch.
	Index   int
	Samples []Sample
	Tensors map[string]*imgproc.Tensor
}

// NewBatch stacks samples into a Batch. All low resolution images must share
// one shape, as must all high resolution ones.
func NewBatch(index int, samples []Sample) (*Batch, error) {
	lrs := make([]imgproc.Image, len(samples))
	hrs := make([]imgproc.Image, len(samples))
	for i, s := range samples {
		lrs[i] = s.LR
		hrs[i] = s.HR
	}
	lr, err := imgproc.ToBatchedTensor(lrs)
	if err != nil {
		return nil, fmt.Errorf("batch %d lr: %w", index, err)
	}
	hr, err := imgproc.ToBatchedTensor(hrs)
	if err != nil {
		return nil, fmt.Errorf("batch %d hr: %w", index, err)
	}
	return &Batch{
		Index:   index,
		Samples: samples,
		Tensors: map[string]*imgproc.Tensor{KeyLR: lr, KeyHR: hr},
	}, nil
}

// Size returns the number of samples.
func (b *Batch) Size() int {
	return len(b.Samples)
}

// LR returns the stacked low resolution tensor.
func (b *Batch) LR() *imgproc.Tensor {
	return b.Tensors[KeyLR]
}

// HR returns the stacked high resolution tensor.
func (b *Batch) HR() *imgproc.Tensor {
	return b.Tensors[KeyHR]
}

// Bytes is the size of the stacked tensors.
func (b *Batch) Bytes() int {
	n := 0
	for _, t := range b.Tensors {
		n += t.Bytes()
	}
	return n
}

// BatchIterator yields the batches of one epoch and io.EOF after the last.
type BatchIterator interface {
	Next(ctx context.Context) (*Batch, error)
}

// BatcherOptions configures a Batcher.
type BatcherOptions struct {
	BatchSize int
	// Shuffle reorders samples at the start of every epoch.
	Shuffle bool
	Seed    int64
	// DropLast skips a final batch smaller than BatchSize.
	DropLast bool
}

// Batcher groups the samples of a Source into fixed size batches.
type Batcher struct {
	src  Source
	opts BatcherOptions

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBatcher returns a Batcher over src.
func NewBatcher(src Source, opts BatcherOptions) (*Batcher, error) {
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("datasets: batch size must be positive, got %d", opts.BatchSize)
	}
	return &Batcher{
		src:  src,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Len returns the number of batches in an epoch.
func (b *Batcher) Len() int {
	n := b.src.Len()
	if b.opts.DropLast {
		return n / b.opts.BatchSize
	}
	return (n + b.opts.BatchSize - 1) / b.opts.BatchSize
}

// BatchSize returns the configured batch size.
func (b *Batcher) BatchSize() int {
	return b.opts.BatchSize
}

// Epoch starts a new pass over the source.
func (b *Batcher) Epoch() BatchIterator {
	order := make([]int, b.src.Len())
	for i := range order {
		order[i] = i
	}
	if b.opts.Shuffle {
		b.mu.Lock()
		b.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		b.mu.Unlock()
	}
	return &epochIterator{
		src:      b.src,
		order:    order,
		size:     b.opts.BatchSize,
		dropLast: b.opts.DropLast,
	}
}

type epochIterator struct {
	src      Source
	order    []int
	size     int
	dropLast bool

	pos   int
	index int
}

func (it *epochIterator) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	remaining := len(it.order) - it.pos
	if remaining <= 0 || (it.dropLast && remaining < it.size) {
		return nil, io.EOF
	}
	n := min(it.size, remaining)
	samples := make([]Sample, n)
	for i := range n {
		idx := it.order[it.pos+i]
		s, err := it.src.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", idx, err)
		}
		samples[i] = s
	}
	it.pos += n
	b, err := NewBatch(it.index, samples)
	if err != nil {
		return nil, err
	}
	it.index++
	return b, nil
}
