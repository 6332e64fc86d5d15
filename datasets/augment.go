package datasets

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// Mode selects how samples are augmented.
type Mode int

const (
	// ModeTrain applies random crop, rotation and flips.
	ModeTrain Mode = iota + 1
	// ModeValid applies a deterministic center crop only.
	ModeValid
)

// ParseMode maps "Train" and "Valid" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "train":
		return ModeTrain, nil
	case "valid":
		return ModeValid, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "Train"
	case ModeValid:
		return "Valid"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Axis names a flip direction.
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

// DefaultAngles are the rotations used in training. Right angles only, so
// rotating never interpolates.
var DefaultAngles = []int{0, 90, 180, 270}

// Augmenter applies the per-mode transform to samples. It is safe for
// concurrent use; the random stream is shared and guarded, so results are
// reproducible for a given seed when called from a single goroutine.
type Augmenter struct {
	mode     Mode
	size     int
	angles   []int
	flipProb float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAugmenter returns an Augmenter cropping to size (low resolution pixels).
func NewAugmenter(mode Mode, size int, seed int64) (*Augmenter, error) {
	if mode != ModeTrain && mode != ModeValid {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMode, mode)
	}
	if size < 1 {
		return nil, fmt.Errorf("datasets: crop size must be positive, got %d", size)
	}
	return &Augmenter{
		mode:     mode,
		size:     size,
		angles:   DefaultAngles,
		flipProb: 0.5,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// Mode returns the augmentation mode.
func (a *Augmenter) Mode() Mode { return a.mode }

// Size returns the low resolution crop size.
func (a *Augmenter) Size() int { return a.size }

// Apply transforms s according to the mode.
func (a *Augmenter) Apply(s Sample) (Sample, error) {
	switch a.mode {
	case ModeTrain:
		a.mu.Lock()
		defer a.mu.Unlock()
		s, err := RandomCrop(a.rng, s, a.size)
		if err != nil {
			return Sample{}, err
		}
		s, err = RandomRotate(a.rng, s, a.angles)
		if err != nil {
			return Sample{}, err
		}
		s = RandomFlip(a.rng, s, Horizontal, a.flipProb)
		s = RandomFlip(a.rng, s, Vertical, a.flipProb)
		return s, nil
	case ModeValid:
		return CenterCrop(s, a.size)
	default:
		return Sample{}, fmt.Errorf("%w: %v", ErrUnsupportedMode, a.mode)
	}
}

// PairScale returns the integer factor between the high and low resolution
// halves of s.
func PairScale(s Sample) (int, error) {
	lr, hr := s.LR, s.HR
	if lr.Empty() || hr.Empty() {
		return 0, fmt.Errorf("%w: empty image", ErrScaleMismatch)
	}
	if hr.Height%lr.Height != 0 || hr.Width%lr.Width != 0 {
		return 0, fmt.Errorf("%w: lr %dx%d, hr %dx%d", ErrScaleMismatch, lr.Height, lr.Width, hr.Height, hr.Width)
	}
	sy, sx := hr.Height/lr.Height, hr.Width/lr.Width
	if sy != sx {
		return 0, fmt.Errorf("%w: lr %dx%d, hr %dx%d", ErrScaleMismatch, lr.Height, lr.Width, hr.Height, hr.Width)
	}
	return sy, nil
}

// cropAt cuts the size x size low resolution window at (top, left) and the
// matching high resolution window.
func cropAt(s Sample, top, left, size, scale int) (Sample, error) {
	lr, err := s.LR.Crop(top, left, size, size)
	if err != nil {
		return Sample{}, err
	}
	hr, err := s.HR.Crop(top*scale, left*scale, size*scale, size*scale)
	if err != nil {
		return Sample{}, err
	}
	return Sample{LR: lr, HR: hr}, nil
}

func checkCrop(s Sample, size int) (int, error) {
	scale, err := PairScale(s)
	if err != nil {
		return 0, err
	}
	if size < 1 || size > s.LR.Height || size > s.LR.Width || size*scale > s.HR.Height || size*scale > s.HR.Width {
		return 0, fmt.Errorf("%w: crop %d on lr %dx%d", ErrCropTooLarge, size, s.LR.Height, s.LR.Width)
	}
	return scale, nil
}

// RandomCrop cuts a size x size window at a uniformly random offset of the
// low resolution image, and the window at the scaled offset of the high
// resolution one.
func RandomCrop(rng *rand.Rand, s Sample, size int) (Sample, error) {
	scale, err := checkCrop(s, size)
	if err != nil {
		return Sample{}, err
	}
	top := rng.Intn(s.LR.Height - size + 1)
	left := rng.Intn(s.LR.Width - size + 1)
	return cropAt(s, top, left, size, scale)
}

// CenterCrop cuts the centered size x size window. It never draws random
// numbers.
func CenterCrop(s Sample, size int) (Sample, error) {
	scale, err := checkCrop(s, size)
	if err != nil {
		return Sample{}, err
	}
	top := (s.LR.Height - size) / 2
	left := (s.LR.Width - size) / 2
	return cropAt(s, top, left, size, scale)
}

// RandomRotate rotates both images counter-clockwise by an angle picked
// uniformly from angles.
func RandomRotate(rng *rand.Rand, s Sample, angles []int) (Sample, error) {
	if len(angles) == 0 {
		return Sample{}, fmt.Errorf("%w: no angles given", ErrInvalidAngle)
	}
	for _, a := range angles {
		if a != 0 && a != 90 && a != 180 && a != 270 {
			return Sample{}, fmt.Errorf("%w: got %d", ErrInvalidAngle, a)
		}
	}
	k := angles[rng.Intn(len(angles))] / 90
	if k == 0 {
		return s, nil
	}
	return Sample{LR: s.LR.Rotate90(k), HR: s.HR.Rotate90(k)}, nil
}

// RandomFlip mirrors both images along axis with probability p.
func RandomFlip(rng *rand.Rand, s Sample, axis Axis, p float64) Sample {
	if rng.Float64() >= p {
		return s
	}
	if axis == Vertical {
		return Sample{LR: s.LR.FlipV(), HR: s.HR.FlipV()}
	}
	return Sample{LR: s.LR.FlipH(), HR: s.HR.FlipH()}
}
