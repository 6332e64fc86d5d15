package imgproc

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// Extra decoders for the bmp/tiff/webp files common in super-resolution
	// benchmark sets. imaging already pulls in jpeg, png and gif.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".bmp":  true,
	".gif":  true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile reports whether name has one of the decodable image extensions.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ListImages returns the sorted base names of the image files in dir.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list images in %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// DecodeImage reads and decodes the image at path.
func DecodeImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %s", path)
	}
	return img, nil
}

// ToLuminance extracts the Y channel (ITU-R BT.601, studio swing) of img,
// normalized to [0, 1].
func ToLuminance(img image.Image) Image {
	b := img.Bounds()
	m := NewImage(b.Dy(), b.Dx())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rf := float64(r) / 0xffff
			gf := float64(g) / 0xffff
			bf := float64(bl) / 0xffff
			m.Pix[y*m.Width+x] = float32((65.481*rf + 128.553*gf + 24.966*bf + 16.0) / 255.0)
		}
	}
	return m
}

// LoadLuminance decodes path and returns its luminance plane.
func LoadLuminance(path string) (Image, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return Image{}, err
	}
	return ToLuminance(img), nil
}
