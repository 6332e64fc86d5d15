package prefetch

import (
	"context"
	"errors"
	"io"

	"github.com/Noofbiz/superres/datasets"
)

// HostPrefetcher iterates a Loader batch by batch in host memory.
type HostPrefetcher struct {
	ctx    context.Context
	loader *Loader
	queue  *Queue[*datasets.Batch]
}

// NewHostPrefetcher starts the first epoch of loader. ctx bounds every
// epoch the prefetcher starts, including those started by Reset.
func NewHostPrefetcher(ctx context.Context, loader *Loader) (*HostPrefetcher, error) {
	p := &HostPrefetcher{ctx: ctx, loader: loader}
	if err := p.Reset(); err != nil {
		return nil, err
	}
	return p, nil
}

// Next returns the next batch, or nil without error once the epoch is
// exhausted. Producer failures are returned as errors.
func (p *HostPrefetcher) Next() (*datasets.Batch, error) {
	b, err := p.queue.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Reset abandons the current epoch and starts again from the beginning.
func (p *HostPrefetcher) Reset() error {
	q, err := p.loader.Iter(p.ctx)
	if err != nil {
		return err
	}
	p.queue = q
	return nil
}

// Len is the number of batches per epoch.
func (p *HostPrefetcher) Len() int { return p.loader.Len() }

// Close stops the producer.
func (p *HostPrefetcher) Close() { p.loader.Close() }
