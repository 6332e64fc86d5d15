// Package datasets prepares paired low/high resolution luminance samples for
// super-resolution training.
//
// Layout and intended usage:
//
// Sources
//   - DirPairSource reads <dir>/lr and <dir>/hr, pairing files by name.
//   - ImageDirSource reads high resolution images from a single directory.
//   - SyntheticSource manufactures the low resolution half of each pair by a
//     downsample-then-upsample round trip.
//
// Sources decode lazily. Preload turns any Source into a Store, which holds
// every sample decoded in memory and is what training reads from.
//
// Dataset applies an Augmenter (random crop/rotate/flip for Train, center
// crop for Valid) on top of a Source at fetch time, and a Batcher groups
// samples into Batches with stacked "lr" and "hr" tensors.
package datasets

import (
	"context"

	"github.com/Noofbiz/superres/imgproc"
)

// Source is a random access supplier of samples.
type Source interface {
	Len() int
	// Get returns the sample at index i, or ErrIndexOutOfRange.
	Get(i int) (Sample, error)
}

// ImageSource is a random access supplier of single images, used as the high
// resolution input of a SyntheticSource.
type ImageSource interface {
	Len() int
	Image(i int) (imgproc.Image, error)
}

// Images adapts an in-memory slice to ImageSource.
type Images []imgproc.Image

// Len implements ImageSource.
func (s Images) Len() int { return len(s) }

// Image implements ImageSource.
func (s Images) Image(i int) (imgproc.Image, error) {
	if i < 0 || i >= len(s) {
		return imgproc.Image{}, indexError(i, len(s))
	}
	return s[i], nil
}

// Dataset is a Source whose samples are passed through an Augmenter on every
// fetch. A nil Augmenter returns the underlying samples unchanged.
type Dataset struct {
	src Source
	aug *Augmenter
}

var _ Source = (*Dataset)(nil)

// NewDataset wraps src with aug.
func NewDataset(src Source, aug *Augmenter) *Dataset {
	return &Dataset{src: src, aug: aug}
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return d.src.Len()
}

// Get fetches sample i and augments it.
func (d *Dataset) Get(i int) (Sample, error) {
	s, err := d.src.Get(i)
	if err != nil {
		return Sample{}, err
	}
	if d.aug == nil {
		return s, nil
	}
	return d.aug.Apply(s)
}

// Source returns the underlying, un-augmented source.
func (d *Dataset) Source() Source {
	return d.src
}

// TrainValidOptions configures NewTrainValidDataset.
type TrainValidOptions struct {
	// ImageSize is the low resolution crop size.
	ImageSize int
	Mode      Mode
	// Seed drives the augmentation randomness.
	Seed    int64
	Preload PreloadOptions
}

// NewTrainValidDataset preloads the pairs under imageDir/lr and imageDir/hr
// and augments them according to opts.Mode.
func NewTrainValidDataset(ctx context.Context, imageDir string, opts TrainValidOptions) (*Dataset, error) {
	aug, err := NewAugmenter(opts.Mode, opts.ImageSize, opts.Seed)
	if err != nil {
		return nil, err
	}
	src, err := NewDirPairSource(imageDir)
	if err != nil {
		return nil, err
	}
	popts := opts.Preload
	if popts.Description == "" {
		popts.Description = "Read " + opts.Mode.String() + " dataset into memory"
	}
	store, err := Preload(ctx, src, popts)
	if err != nil {
		return nil, err
	}
	return NewDataset(store, aug), nil
}

// NewTestDataset preloads the high resolution images in dir and degrades each
// by the upscale factor to build its low resolution companion.
func NewTestDataset(ctx context.Context, dir string, upscaleFactor int, popts PreloadOptions) (*Dataset, error) {
	images, err := NewImageDirSource(dir)
	if err != nil {
		return nil, err
	}
	src, err := NewSyntheticSource(images, upscaleFactor)
	if err != nil {
		return nil, err
	}
	if popts.Description == "" {
		popts.Description = "Read test dataset into memory"
	}
	store, err := Preload(ctx, src, popts)
	if err != nil {
		return nil, err
	}
	return NewDataset(store, nil), nil
}
