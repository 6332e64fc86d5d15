// Package imgproc holds the small image helpers the datasets are built on:
// a single channel float32 plane, decoding, luminance extraction, bicubic
// resampling and batching into contiguous tensors.
package imgproc

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when images that must share a shape do not.
var ErrShapeMismatch = errors.New("imgproc: shape mismatch")

// Image is a single channel image stored row-major. Values are expected in
// [0, 1] but nothing here enforces it.
type Image struct {
	Height int
	Width  int
	Pix    []float32
}

// NewImage allocates a zeroed Image of the given size.
func NewImage(height, width int) Image {
	return Image{Height: height, Width: width, Pix: make([]float32, height*width)}
}

// FromRows builds an Image from a slice of equally sized rows.
func FromRows(rows [][]float32) (Image, error) {
	if len(rows) == 0 {
		return Image{}, nil
	}
	m := NewImage(len(rows), len(rows[0]))
	for y, row := range rows {
		if len(row) != m.Width {
			return Image{}, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShapeMismatch, y, len(row), m.Width)
		}
		copy(m.Pix[y*m.Width:], row)
	}
	return m, nil
}

// At returns the pixel at row y, column x.
func (m Image) At(y, x int) float32 {
	return m.Pix[y*m.Width+x]
}

// Set writes the pixel at row y, column x.
func (m Image) Set(y, x int, v float32) {
	m.Pix[y*m.Width+x] = v
}

// Empty reports whether the image has no pixels.
func (m Image) Empty() bool {
	return m.Height == 0 || m.Width == 0
}

// SameShape reports whether both images have the same dimensions.
func (m Image) SameShape(o Image) bool {
	return m.Height == o.Height && m.Width == o.Width
}

// Bytes is the size of the pixel buffer in bytes.
func (m Image) Bytes() int {
	return 4 * len(m.Pix)
}

// Clone returns a deep copy.
func (m Image) Clone() Image {
	c := Image{Height: m.Height, Width: m.Width, Pix: make([]float32, len(m.Pix))}
	copy(c.Pix, m.Pix)
	return c
}

// Equal reports whether both images have the same shape and pixels.
func (m Image) Equal(o Image) bool {
	if !m.SameShape(o) || len(m.Pix) != len(o.Pix) {
		return false
	}
	for i, v := range m.Pix {
		if o.Pix[i] != v {
			return false
		}
	}
	return true
}

// Crop copies the h x w region whose top-left corner is (top, left).
func (m Image) Crop(top, left, h, w int) (Image, error) {
	if top < 0 || left < 0 || h < 0 || w < 0 || top+h > m.Height || left+w > m.Width {
		return Image{}, fmt.Errorf("imgproc: crop %dx%d at (%d,%d) outside %dx%d image", h, w, top, left, m.Height, m.Width)
	}
	c := NewImage(h, w)
	for y := 0; y < h; y++ {
		src := m.Pix[(top+y)*m.Width+left : (top+y)*m.Width+left+w]
		copy(c.Pix[y*w:(y+1)*w], src)
	}
	return c, nil
}

// Rotate90 rotates the image counter-clockwise by k quarter turns. Negative
// k rotates clockwise.
func (m Image) Rotate90(k int) Image {
	k = ((k % 4) + 4) % 4
	switch k {
	case 1:
		r := NewImage(m.Width, m.Height)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				r.Pix[y*r.Width+x] = m.At(x, m.Width-1-y)
			}
		}
		return r
	case 2:
		r := NewImage(m.Height, m.Width)
		n := len(m.Pix)
		for i, v := range m.Pix {
			r.Pix[n-1-i] = v
		}
		return r
	case 3:
		r := NewImage(m.Width, m.Height)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				r.Pix[y*r.Width+x] = m.At(m.Height-1-x, y)
			}
		}
		return r
	default:
		return m.Clone()
	}
}

// FlipH mirrors the image left to right.
func (m Image) FlipH() Image {
	r := NewImage(m.Height, m.Width)
	for y := 0; y < m.Height; y++ {
		row := y * m.Width
		for x := 0; x < m.Width; x++ {
			r.Pix[row+x] = m.Pix[row+m.Width-1-x]
		}
	}
	return r
}

// FlipV mirrors the image top to bottom.
func (m Image) FlipV() Image {
	r := NewImage(m.Height, m.Width)
	for y := 0; y < m.Height; y++ {
		copy(r.Pix[y*m.Width:(y+1)*m.Width], m.Pix[(m.Height-1-y)*m.Width:(m.Height-y)*m.Width])
	}
	return r
}
