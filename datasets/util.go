package datasets

import (
	"fmt"
	"path/filepath"

	"github.com/Noofbiz/superres/imgproc"
)

func indexError(i, n int) error {
	return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, n)
}

// pairedNames lists lrDir and hrDir and returns the file names present in
// both. The listings must match exactly: a file without its partner is an
// error rather than being skipped, so the pairing can never shift.
func pairedNames(lrDir, hrDir string) ([]string, error) {
	lrNames, err := imgproc.ListImages(lrDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamDecode, err)
	}
	hrNames, err := imgproc.ListImages(hrDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamDecode, err)
	}
	if len(lrNames) != len(hrNames) {
		return nil, fmt.Errorf("%w: %d files in %s, %d files in %s", ErrUnpairedSample, len(lrNames), lrDir, len(hrNames), hrDir)
	}
	for i := range lrNames {
		if lrNames[i] != hrNames[i] {
			return nil, fmt.Errorf("%w: %s has no partner (found %s)", ErrUnpairedSample,
				filepath.Join(lrDir, lrNames[i]), filepath.Join(hrDir, hrNames[i]))
		}
	}
	return lrNames, nil
}

// loadLuminance decodes path, tagging failures with ErrUpstreamDecode.
func loadLuminance(path string) (imgproc.Image, error) {
	img, err := imgproc.LoadLuminance(path)
	if err != nil {
		return imgproc.Image{}, fmt.Errorf("%w: %w", ErrUpstreamDecode, err)
	}
	return img, nil
}
