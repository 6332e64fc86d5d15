package datasets

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Train")
	require.NoError(t, err)
	assert.Equal(t, ModeTrain, m)

	m, err = ParseMode(" valid ")
	require.NoError(t, err)
	assert.Equal(t, ModeValid, m)

	_, err = ParseMode("test")
	assert.ErrorIs(t, err, ErrUnsupportedMode)
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestCenterCropRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := rapid.IntRange(1, 24).Draw(t, "h")
		w := rapid.IntRange(1, 24).Draw(t, "w")
		scale := rapid.IntRange(1, 4).Draw(t, "scale")
		c := rapid.IntRange(1, min(h, w)).Draw(t, "c")
		s := blockSample(1, h, w, scale)

		out, err := CenterCrop(s, c)
		if err != nil {
			t.Fatalf("CenterCrop: %v", err)
		}
		if out.LR.Height != c || out.LR.Width != c || out.HR.Height != c*scale || out.HR.Width != c*scale {
			t.Fatalf("unexpected shapes lr %dx%d hr %dx%d", out.LR.Height, out.LR.Width, out.HR.Height, out.HR.Width)
		}
		top, left := (h-c)/2, (w-c)/2
		for y := 0; y < c; y++ {
			for x := 0; x < c; x++ {
				if out.LR.At(y, x) != s.LR.At(top+y, left+x) {
					t.Fatalf("lr mismatch at (%d,%d)", y, x)
				}
			}
		}
		for y := 0; y < c*scale; y++ {
			for x := 0; x < c*scale; x++ {
				if out.HR.At(y, x) != s.HR.At(top*scale+y, left*scale+x) {
					t.Fatalf("hr mismatch at (%d,%d)", y, x)
				}
			}
		}
	})
}

func TestRandomCropWholeImage(t *testing.T) {
	s := blockSample(3, 6, 6, 2)
	rng := rand.New(rand.NewSource(5))
	for range 20 {
		out, err := RandomCrop(rng, s, 6)
		require.NoError(t, err)
		assert.True(t, out.LR.Equal(s.LR))
		assert.True(t, out.HR.Equal(s.HR))
	}
}

func TestRandomCropCorrespondence(t *testing.T) {
	s := blockSample(2, 20, 17, 3)
	rng := rand.New(rand.NewSource(11))
	for range 50 {
		out, err := RandomCrop(rng, s, 7)
		require.NoError(t, err)
		require.Equal(t, 7, out.LR.Width)
		requireBlockAligned(t, out, 3)
	}
}

func TestRandomCropTooLarge(t *testing.T) {
	s := blockSample(0, 8, 10, 2)
	_, err := RandomCrop(rand.New(rand.NewSource(1)), s, 9)
	assert.ErrorIs(t, err, ErrCropTooLarge)
	_, err = CenterCrop(s, 11)
	assert.ErrorIs(t, err, ErrCropTooLarge)
	_, err = CenterCrop(s, 0)
	assert.ErrorIs(t, err, ErrCropTooLarge)
}

func TestPairScaleMismatch(t *testing.T) {
	s := blockSample(0, 4, 4, 2)
	s.HR, _ = s.HR.Crop(0, 0, 8, 7)
	_, err := PairScale(s)
	assert.ErrorIs(t, err, ErrScaleMismatch)

	s = blockSample(0, 4, 4, 1)
	s.HR = blockSample(0, 8, 12, 1).HR
	_, err = PairScale(s)
	assert.ErrorIs(t, err, ErrScaleMismatch)
}

func TestRandomRotate(t *testing.T) {
	s := blockSample(1, 4, 6, 2)
	rng := rand.New(rand.NewSource(3))

	out, err := RandomRotate(rng, s, []int{90})
	require.NoError(t, err)
	assert.True(t, out.LR.Equal(s.LR.Rotate90(1)))
	requireBlockAligned(t, out, 2)

	_, err = RandomRotate(rng, s, []int{0, 45})
	assert.ErrorIs(t, err, ErrInvalidAngle)
	_, err = RandomRotate(rng, s, nil)
	assert.ErrorIs(t, err, ErrInvalidAngle)
}

func TestRandomFlipProbability(t *testing.T) {
	s := blockSample(1, 3, 3, 1)
	rng := rand.New(rand.NewSource(1))
	assert.True(t, RandomFlip(rng, s, Horizontal, 0).LR.Equal(s.LR))
	assert.True(t, RandomFlip(rng, s, Horizontal, 1).LR.Equal(s.LR.FlipH()))
	assert.True(t, RandomFlip(rng, s, Vertical, 1).LR.Equal(s.LR.FlipV()))
}

func TestAugmenterTrainDeterministic(t *testing.T) {
	s := blockSample(4, 16, 16, 2)
	a1, err := NewAugmenter(ModeTrain, 6, 42)
	require.NoError(t, err)
	a2, err := NewAugmenter(ModeTrain, 6, 42)
	require.NoError(t, err)

	for range 25 {
		o1, err := a1.Apply(s)
		require.NoError(t, err)
		o2, err := a2.Apply(s)
		require.NoError(t, err)
		assert.True(t, o1.LR.Equal(o2.LR))
		assert.True(t, o1.HR.Equal(o2.HR))
		requireBlockAligned(t, o1, 2)
	}
}

func TestAugmenterValid(t *testing.T) {
	s := blockSample(4, 9, 9, 3)
	a, err := NewAugmenter(ModeValid, 5, 0)
	require.NoError(t, err)
	o1, err := a.Apply(s)
	require.NoError(t, err)
	o2, err := a.Apply(s)
	require.NoError(t, err)
	assert.True(t, o1.HR.Equal(o2.HR))
	want, err := CenterCrop(s, 5)
	require.NoError(t, err)
	assert.True(t, o1.LR.Equal(want.LR))
}

func TestAugmenterSurfacesCropFailure(t *testing.T) {
	a, err := NewAugmenter(ModeTrain, 10, 0)
	require.NoError(t, err)
	_, err = a.Apply(blockSample(0, 4, 4, 2))
	assert.ErrorIs(t, err, ErrCropTooLarge)

	_, err = NewAugmenter(ModeTrain, 0, 0)
	assert.Error(t, err)
}
