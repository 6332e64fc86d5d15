package datasets

import (
	"errors"

	"github.com/Noofbiz/superres/imgproc"
)

var (
	// ErrIndexOutOfRange is returned by Source.Get for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("datasets: sample index out of range")
	// ErrInvalidScaleFactor is returned when a synthetic source is built with scale < 1.
	ErrInvalidScaleFactor = errors.New("datasets: scale factor must be >= 1")
	// ErrCropTooLarge is returned when a crop does not fit inside a sample.
	ErrCropTooLarge = errors.New("datasets: crop size larger than image")
	// ErrUnsupportedMode is returned for anything other than Train or Valid.
	ErrUnsupportedMode = errors.New("datasets: unsupported data processing mode, use Train or Valid")
	// ErrUpstreamDecode wraps failures reading or decoding an image file.
	ErrUpstreamDecode = errors.New("datasets: failed to decode image")
	// ErrScaleMismatch is returned when the high resolution image is not an
	// integer multiple of the low resolution one on both axes.
	ErrScaleMismatch = errors.New("datasets: high/low resolution sizes are not an integer multiple")
	// ErrInvalidAngle is returned for rotation angles outside {0, 90, 180, 270}.
	ErrInvalidAngle = errors.New("datasets: rotation angle must be one of 0, 90, 180, 270")
	// ErrUnpairedSample is returned when the lr and hr directories do not hold
	// the same file names.
	ErrUnpairedSample = errors.New("datasets: low/high resolution files are not paired")
	// ErrEmptyDataset is returned when a dataset would have no samples.
	ErrEmptyDataset = errors.New("datasets: no samples found")
	// ErrShapeMismatch is returned when samples in a batch cannot be stacked.
	ErrShapeMismatch = imgproc.ErrShapeMismatch
)
