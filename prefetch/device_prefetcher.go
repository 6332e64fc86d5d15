package prefetch

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Noofbiz/superres/datasets"
	"k8s.io/klog/v2"
)

// DeviceBatch is a batch whose tensors live on a Device. The caller owns it
// and should Release it once done.
type DeviceBatch struct {
	Host    *datasets.Batch
	Tensors map[string]Buffer
}

// LR is the low-resolution input buffer.
func (b *DeviceBatch) LR() Buffer { return b.Tensors[datasets.KeyLR] }

// HR is the high-resolution target buffer.
func (b *DeviceBatch) HR() Buffer { return b.Tensors[datasets.KeyHR] }

// Release frees the device buffers.
func (b *DeviceBatch) Release() {
	for _, buf := range b.Tensors {
		buf.Release()
	}
}

// staged is a batch whose transfer was submitted but not yet awaited, or
// the host-side error that prevented it.
type staged struct {
	batch *DeviceBatch
	event *Event
	err   error
}

// DevicePrefetcher keeps exactly one batch in flight to a Device: Next
// waits for the staged transfer, stages the following batch and only then
// hands the finished one to the caller.
type DevicePrefetcher struct {
	host   *HostPrefetcher
	dev    Device
	stream *Stream
	obs    Observer

	// staging and ready form the two-slot arena. staging is nil when nothing
	// is in flight; ready is the batch most recently returned by Next.
	staging *staged
	ready   *DeviceBatch
}

// NewDevicePrefetcher starts the first epoch of loader and stages its first
// batch on dev. The prefetcher does not close dev.
func NewDevicePrefetcher(ctx context.Context, loader *Loader, dev Device, opts ...Option) (*DevicePrefetcher, error) {
	o := buildOptions(loader.Name(), opts)
	host, err := NewHostPrefetcher(ctx, loader)
	if err != nil {
		return nil, err
	}
	p := &DevicePrefetcher{
		host:   host,
		dev:    dev,
		stream: NewStream(o.name + "/" + dev.Name()),
		obs:    o.observer,
	}
	p.stage()
	return p, nil
}

// stage pulls the next host batch and submits its transfer.
func (p *DevicePrefetcher) stage() {
	if p.staging != nil {
		panic("prefetch: staging slot already occupied")
	}
	b, err := p.host.Next()
	if err != nil {
		p.staging = &staged{err: err}
		return
	}
	if b == nil {
		return
	}
	db := &DeviceBatch{Host: b, Tensors: make(map[string]Buffer, len(b.Tensors))}
	names := slices.Sorted(maps.Keys(b.Tensors))
	for _, name := range names {
		buf, err := p.dev.Alloc(b.Tensors[name].Shape)
		if err != nil {
			db.Release()
			p.staging = &staged{err: fmt.Errorf("alloc %s on %s: %w", name, p.dev.Name(), err)}
			return
		}
		db.Tensors[name] = buf
	}
	start := time.Now()
	ev := p.stream.Submit(func() error {
		for _, name := range names {
			if err := p.dev.CopyIn(db.Tensors[name], b.Tensors[name]); err != nil {
				return fmt.Errorf("copy %s to %s: %w", name, p.dev.Name(), err)
			}
		}
		p.obs.Transferred(p.dev.Name(), time.Since(start), b.Bytes())
		return nil
	})
	p.staging = &staged{batch: db, event: ev}
}

// Next returns the next batch with its transfer complete, or nil without
// error at the end of the epoch. After an error the epoch is over; call
// Reset to start again.
func (p *DevicePrefetcher) Next() (*DeviceBatch, error) {
	st := p.staging
	if st == nil {
		p.ready = nil
		return nil, nil
	}
	p.staging = nil
	if st.err != nil {
		p.ready = nil
		return nil, st.err
	}
	if err := st.event.Wait(); err != nil {
		st.batch.Release()
		p.ready = nil
		klog.Errorf("%s: transfer failed: %v", p.dev.Name(), err)
		return nil, err
	}
	p.ready = st.batch
	p.stage()
	return p.ready, nil
}

// InFlight reports whether a transfer is staged.
func (p *DevicePrefetcher) InFlight() bool {
	return p.staging != nil && p.staging.event != nil
}

// discard waits out and frees the staged batch.
func (p *DevicePrefetcher) discard() {
	st := p.staging
	p.staging = nil
	if st == nil || st.batch == nil {
		return
	}
	_ = st.event.Wait()
	st.batch.Release()
}

// Reset drops any in-flight transfer, restarts the loader and stages the
// first batch again.
func (p *DevicePrefetcher) Reset() error {
	p.discard()
	p.ready = nil
	if err := p.host.Reset(); err != nil {
		return err
	}
	p.stage()
	return nil
}

// Len is the number of batches per epoch.
func (p *DevicePrefetcher) Len() int { return p.host.Len() }

// Device is the transfer target.
func (p *DevicePrefetcher) Device() Device { return p.dev }

// Close stops the producer and the copy stream.
func (p *DevicePrefetcher) Close() {
	p.discard()
	p.host.Close()
	p.stream.Close()
}
