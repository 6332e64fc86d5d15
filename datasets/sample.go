package datasets

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/Noofbiz/superres/imgproc"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Sample is a matched low/high resolution pair of luminance planes.
type Sample struct {
	LR imgproc.Image
	HR imgproc.Image
}

// Bytes is the memory held by both planes.
func (s Sample) Bytes() int {
	return s.LR.Bytes() + s.HR.Bytes()
}

// Store is an immutable, fully decoded set of samples held in memory.
type Store struct {
	samples []Sample
	bytes   int
}

// NewStore wraps already decoded samples. The slice is owned by the store
// afterwards.
func NewStore(samples []Sample) *Store {
	s := &Store{samples: samples}
	for _, sample := range samples {
		s.bytes += sample.Bytes()
	}
	return s
}

// Len returns the number of samples.
func (s *Store) Len() int {
	return len(s.samples)
}

// Get returns the sample at index i.
func (s *Store) Get(i int) (Sample, error) {
	if i < 0 || i >= len(s.samples) {
		return Sample{}, indexError(i, len(s.samples))
	}
	return s.samples[i], nil
}

// Bytes is the total pixel memory held by the store.
func (s *Store) Bytes() int {
	return s.bytes
}

// Release drops the samples so their memory can be collected. The store is
// empty afterwards.
func (s *Store) Release() {
	s.samples = nil
	s.bytes = 0
}

// PreloadOptions controls how Preload reads a source into memory.
type PreloadOptions struct {
	// Workers bounds the number of samples decoded concurrently. Zero uses
	// runtime.NumCPU().
	Workers int

	// Progress, when set, receives a progress bar.
	Progress io.Writer

	// Description labels the progress bar and log lines.
	Description string
}

// Preload reads every sample of src into a Store. The store is allocated at
// its final size up front and filled by index, so the order matches src
// regardless of which worker finishes first. Any failure aborts the whole
// preload: a store never contains a partially read dataset.
func Preload(ctx context.Context, src Source, opts PreloadOptions) (*Store, error) {
	n := src.Len()
	if n == 0 {
		return nil, ErrEmptyDataset
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	desc := opts.Description
	if desc == "" {
		desc = "Read dataset into memory"
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetItsString("image"),
			progressbar.OptionShowIts(),
			progressbar.OptionShowCount(),
		)
	} else {
		bar = progressbar.DefaultSilent(int64(n), desc)
	}

	samples := make([]Sample, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := src.Get(i)
			if err != nil {
				return fmt.Errorf("failed to preload sample %d: %w", i, err)
			}
			samples[i] = s
			return bar.Add(1)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := bar.Finish(); err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}

	store := NewStore(samples)
	klog.Infof("%s: %d samples preloaded (%s)", desc, n, humanize.Bytes(uint64(store.Bytes())))
	return store, nil
}
