package prefetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/Noofbiz/superres/datasets"
	"k8s.io/klog/v2"
)

// BatchSource yields one pass over a dataset per Epoch call.
// *datasets.Batcher implements it.
type BatchSource interface {
	// Len is the number of batches in an epoch.
	Len() int
	Epoch() datasets.BatchIterator
}

// Loader streams epochs of a BatchSource through a bounded queue. Every
// call to Iter starts a fresh producer; the previous one, if any, is shut
// down first.
type Loader struct {
	src      BatchSource
	capacity int
	opts     options

	mu     sync.Mutex
	active *Queue[*datasets.Batch]
	epoch  int
}

// NewLoader creates a loader that keeps up to capacity batches ready ahead
// of the consumer.
func NewLoader(src BatchSource, capacity int, opts ...Option) (*Loader, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Loader{
		src:      src,
		capacity: capacity,
		opts:     buildOptions("loader", opts),
	}, nil
}

// Iter starts a new epoch and returns the queue to consume it from.
func (l *Loader) Iter(ctx context.Context) (*Queue[*datasets.Batch], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		l.active.Close()
		l.active = nil
	}
	q, err := NewQueue[*datasets.Batch](l.capacity,
		WithName(l.opts.name), WithObserver(l.opts.observer))
	if err != nil {
		return nil, err
	}
	if err := q.Start(ctx, l.src.Epoch()); err != nil {
		return nil, err
	}
	l.active = q
	l.epoch++
	klog.V(1).Infof("%s: epoch %d started, %d batches", l.opts.name, l.epoch, l.src.Len())
	return q, nil
}

// Len is the number of batches per epoch.
func (l *Loader) Len() int { return l.src.Len() }

// Capacity is the prefetch depth.
func (l *Loader) Capacity() int { return l.capacity }

// Name is the label used in logs and metrics.
func (l *Loader) Name() string { return l.opts.name }

// Close shuts down the active epoch, if any.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		l.active.Close()
		l.active = nil
	}
}
