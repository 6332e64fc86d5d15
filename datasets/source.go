package datasets

import (
	"fmt"
	"path/filepath"

	"github.com/Noofbiz/superres/imgproc"
)

// DirPairSource lazily reads the luminance of matching files in <dir>/lr and
// <dir>/hr.
type DirPairSource struct {
	lrDir, hrDir string
	names        []string
}

var _ Source = (*DirPairSource)(nil)

// NewDirPairSource scans imageDir/lr and imageDir/hr. Files are paired by
// name in sorted order.
func NewDirPairSource(imageDir string) (*DirPairSource, error) {
	lrDir := filepath.Join(imageDir, "lr")
	hrDir := filepath.Join(imageDir, "hr")
	names, err := pairedNames(lrDir, hrDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no images under %s", ErrEmptyDataset, imageDir)
	}
	return &DirPairSource{lrDir: lrDir, hrDir: hrDir, names: names}, nil
}

// Len returns the number of pairs.
func (s *DirPairSource) Len() int {
	return len(s.names)
}

// Name returns the file name shared by pair i.
func (s *DirPairSource) Name(i int) string {
	return s.names[i]
}

// Get decodes pair i.
func (s *DirPairSource) Get(i int) (Sample, error) {
	if i < 0 || i >= len(s.names) {
		return Sample{}, indexError(i, len(s.names))
	}
	lr, err := loadLuminance(filepath.Join(s.lrDir, s.names[i]))
	if err != nil {
		return Sample{}, err
	}
	hr, err := loadLuminance(filepath.Join(s.hrDir, s.names[i]))
	if err != nil {
		return Sample{}, err
	}
	return Sample{LR: lr, HR: hr}, nil
}

// ImageDirSource lazily reads the luminance of every image in a directory.
type ImageDirSource struct {
	dir   string
	names []string
}

var _ ImageSource = (*ImageDirSource)(nil)

// NewImageDirSource scans dir for image files.
func NewImageDirSource(dir string) (*ImageDirSource, error) {
	names, err := imgproc.ListImages(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamDecode, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no images under %s", ErrEmptyDataset, dir)
	}
	return &ImageDirSource{dir: dir, names: names}, nil
}

// Len returns the number of images.
func (s *ImageDirSource) Len() int {
	return len(s.names)
}

// Image decodes image i.
func (s *ImageDirSource) Image(i int) (imgproc.Image, error) {
	if i < 0 || i >= len(s.names) {
		return imgproc.Image{}, indexError(i, len(s.names))
	}
	return loadLuminance(filepath.Join(s.dir, s.names[i]))
}

// SyntheticSource builds pairs from high resolution images alone: the low
// resolution half is the image resampled by 1/scale and back by scale, so it
// carries the acquisition degradation at the original resolution.
type SyntheticSource struct {
	images ImageSource
	scale  int
}

var _ Source = (*SyntheticSource)(nil)

// NewSyntheticSource returns a SyntheticSource over images.
func NewSyntheticSource(images ImageSource, scale int) (*SyntheticSource, error) {
	if scale < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidScaleFactor, scale)
	}
	return &SyntheticSource{images: images, scale: scale}, nil
}

// Len returns the number of images.
func (s *SyntheticSource) Len() int {
	return s.images.Len()
}

// Scale returns the degradation factor.
func (s *SyntheticSource) Scale() int {
	return s.scale
}

// Get degrades image i. The high resolution image is first trimmed to a
// multiple of the scale so the round trip lands on exactly the same size.
func (s *SyntheticSource) Get(i int) (Sample, error) {
	if i < 0 || i >= s.images.Len() {
		return Sample{}, indexError(i, s.images.Len())
	}
	hr, err := s.images.Image(i)
	if err != nil {
		return Sample{}, err
	}
	hr, err = modCrop(hr, s.scale)
	if err != nil {
		return Sample{}, err
	}
	down, err := imgproc.Resample(hr, 1/float64(s.scale))
	if err != nil {
		return Sample{}, err
	}
	lr, err := imgproc.Resample(down, float64(s.scale))
	if err != nil {
		return Sample{}, err
	}
	return Sample{LR: lr, HR: hr}, nil
}

// modCrop trims m so both sides are multiples of scale.
func modCrop(m imgproc.Image, scale int) (imgproc.Image, error) {
	h := m.Height - m.Height%scale
	w := m.Width - m.Width%scale
	if h == 0 || w == 0 {
		return imgproc.Image{}, fmt.Errorf("%w: %dx%d image smaller than scale %d", ErrCropTooLarge, m.Height, m.Width, scale)
	}
	if h == m.Height && w == m.Width {
		return m, nil
	}
	return m.Crop(0, 0, h, w)
}
