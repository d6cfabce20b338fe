package effects

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidBackground(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestNewAnimation(t *testing.T) {
	bg := solidBackground(color.RGBA{B: 128, A: 255}, 120, 120)

	t.Run("frame count is fps times duration", func(t *testing.T) {
		anim, err := NewAnimation(bg, "hi", 120, 120, 15, 5, 1)
		require.NoError(t, err)
		assert.Equal(t, 75, anim.FrameCount())
	})

	t.Run("fractional duration floors", func(t *testing.T) {
		anim, err := NewAnimation(bg, "", 120, 120, 10, 1.55, 1)
		require.NoError(t, err)
		assert.Equal(t, 15, anim.FrameCount())
	})

	t.Run("zero-length clip rejected", func(t *testing.T) {
		_, err := NewAnimation(bg, "", 120, 120, 1, 0.5, 1)
		assert.ErrorIs(t, err, ErrNoFrames)
	})

	t.Run("message truncated to limit", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		anim, err := NewAnimation(bg, long, 120, 120, 5, 1, 1)
		require.NoError(t, err)
		assert.Len(t, anim.message, MaxMessageRunes)
	})
}

func TestAnimation_RenderFrame(t *testing.T) {
	bg := solidBackground(color.RGBA{B: 200, A: 255}, 100, 100)

	t.Run("frames match target bounds", func(t *testing.T) {
		anim, err := NewAnimation(bg, "msg", 100, 100, 5, 1, 42)
		require.NoError(t, err)

		for i := 0; i < anim.FrameCount(); i++ {
			frame, err := anim.RenderFrame(i)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 100, 100), frame.Bounds())
		}
	})

	t.Run("out of range index rejected", func(t *testing.T) {
		anim, err := NewAnimation(bg, "", 100, 100, 5, 1, 42)
		require.NoError(t, err)

		_, err = anim.RenderFrame(-1)
		assert.Error(t, err)
		_, err = anim.RenderFrame(anim.FrameCount())
		assert.Error(t, err)
	})

	t.Run("same seed reproduces the clip", func(t *testing.T) {
		a1, err := NewAnimation(bg, "twin", 100, 100, 5, 2, 7)
		require.NoError(t, err)
		a2, err := NewAnimation(bg, "twin", 100, 100, 5, 2, 7)
		require.NoError(t, err)

		for i := 0; i < a1.FrameCount(); i++ {
			f1, err := a1.RenderFrame(i)
			require.NoError(t, err)
			f2, err := a2.RenderFrame(i)
			require.NoError(t, err)
			assert.Equal(t, f1.Pix, f2.Pix, "frame %d differs", i)
		}
	})

	t.Run("later frames contain hearts", func(t *testing.T) {
		anim, err := NewAnimation(bg, "", 100, 100, 10, 3, 3)
		require.NoError(t, err)

		// By mid-clip at least one heart is in flight; heart pink differs
		// from the blue background.
		frame, err := anim.RenderFrame(anim.FrameCount() / 2)
		require.NoError(t, err)

		found := false
		for i := 0; i < len(frame.Pix); i += 4 {
			if frame.Pix[i] > 150 { // red channel well above background
				found = true
				break
			}
		}
		assert.True(t, found, "expected heart pixels mid-clip")
	})

	t.Run("background preserved without message or hearts yet", func(t *testing.T) {
		anim, err := NewAnimation(bg, "", 100, 100, 10, 3, 3)
		require.NoError(t, err)

		frame, err := anim.RenderFrame(0)
		require.NoError(t, err)

		// Bottom rows are untouched at frame zero.
		c := frame.RGBAAt(50, 99)
		assert.Equal(t, uint8(200), c.B)
	})
}

func TestRenderHeart(t *testing.T) {
	img := renderHeart(32)
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())

	// Center of the lobes is filled, corners are transparent.
	assert.NotZero(t, img.RGBAAt(16, 10).A)
	assert.Zero(t, img.RGBAAt(0, 31).A)
	assert.Zero(t, img.RGBAAt(31, 31).A)
}
