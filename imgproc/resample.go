package imgproc

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ResampledSize is the size an image dimension takes when scaled by factor.
// It rounds up, so a round trip through 1/s and s restores the original size
// whenever the dimension is a multiple of s.
func ResampledSize(dim int, factor float64) int {
	n := int(math.Ceil(float64(dim)*factor - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// Resample scales m by factor with a Catmull-Rom (bicubic) kernel. The
// conversion goes through 16 bit gray so no precision is lost to 8 bit
// quantization.
func Resample(m Image, factor float64) (Image, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Image{}, fmt.Errorf("imgproc: invalid resample factor %v", factor)
	}
	if m.Empty() {
		return Image{}, fmt.Errorf("imgproc: cannot resample an empty image")
	}
	h := ResampledSize(m.Height, factor)
	w := ResampledSize(m.Width, factor)
	if h == m.Height && w == m.Width {
		return m.Clone(), nil
	}
	src := toGray16(m)
	dst := image.NewGray16(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromGray16(dst), nil
}

func toGray16(m Image) *image.Gray16 {
	g := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		q := uint16(math.Round(float64(v) * 0xffff))
		g.Pix[2*i] = uint8(q >> 8)
		g.Pix[2*i+1] = uint8(q)
	}
	return g
}

func fromGray16(g *image.Gray16) Image {
	b := g.Bounds()
	m := NewImage(b.Dy(), b.Dx())
	for y := 0; y < m.Height; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < m.Width; x++ {
			q := uint16(row[2*x])<<8 | uint16(row[2*x+1])
			m.Pix[y*m.Width+x] = float32(q) / 0xffff
		}
	}
	return m
}
