package datasets

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/superres/imgproc"
	"github.com/stretchr/testify/require"
)

// blockSample builds a pair whose hr half is the lr half upscaled by pixel
// replication, so any geometric transform applied to both keeps
// hr[y*scale+dy][x*scale+dx] == lr[y][x].
func blockSample(id, h, w, scale int) Sample {
	lr := imgproc.NewImage(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lr.Set(y, x, float32(id*100000+y*w+x))
		}
	}
	hr := imgproc.NewImage(h*scale, w*scale)
	for y := 0; y < hr.Height; y++ {
		for x := 0; x < hr.Width; x++ {
			hr.Set(y, x, lr.At(y/scale, x/scale))
		}
	}
	return Sample{LR: lr, HR: hr}
}

func requireBlockAligned(t *testing.T, s Sample, scale int) {
	t.Helper()
	require.Equal(t, s.LR.Height*scale, s.HR.Height)
	require.Equal(t, s.LR.Width*scale, s.HR.Width)
	for y := 0; y < s.HR.Height; y++ {
		for x := 0; x < s.HR.Width; x++ {
			require.Equal(t, s.LR.At(y/scale, x/scale), s.HR.At(y, x), "hr (%d,%d)", y, x)
		}
	}
}

// memSource is an in-memory Source that can be told to fail on one index.
type memSource struct {
	samples []Sample
	failAt  int
}

func newMemSource(n, h, w, scale int) *memSource {
	s := &memSource{failAt: -1}
	for i := range n {
		s.samples = append(s.samples, blockSample(i, h, w, scale))
	}
	return s
}

func (m *memSource) Len() int { return len(m.samples) }

func (m *memSource) Get(i int) (Sample, error) {
	if i == m.failAt {
		return Sample{}, errors.Join(ErrUpstreamDecode, errors.New("corrupt file"))
	}
	if i < 0 || i >= len(m.samples) {
		return Sample{}, indexError(i, len(m.samples))
	}
	return m.samples[i], nil
}

func writeGrayPNG(t *testing.T, path string, h, w int, level uint8) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: level + uint8(x+y)})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func drain(t *testing.T, it BatchIterator) []*Batch {
	t.Helper()
	var out []*Batch
	for {
		b, err := it.Next(context.Background())
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, b)
	}
}
