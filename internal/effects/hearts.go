// Package effects renders animation frames server-side: a background image
// with a message overlaid near the top and small hearts falling from
// staggered positions. Frames are produced lazily, one at a time, so a clip
// never holds more than the background and the current frame in memory.
package effects

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrNoFrames is returned when fps and duration yield an empty animation.
var ErrNoFrames = errors.New("effects: fps and duration yield zero frames")

// MaxMessageRunes bounds the overlay text; longer messages are truncated.
const MaxMessageRunes = 200

const heartCount = 15

var heartColor = color.NRGBA{R: 255, G: 105, B: 180, A: 200}

// heart is one falling heart's precomputed trajectory parameters.
type heart struct {
	start int // frame index at which the heart enters
	x     int // horizontal center in pixels
	size  int // width and height in pixels
}

// Animation renders the heart-rain overlay over a fixed background.
// RenderFrame must be called with strictly increasing indexes; the internal
// random stream that drives per-frame drift advances with each call, so a
// fixed seed reproduces the clip exactly.
type Animation struct {
	bg      *image.RGBA
	width   int
	height  int
	total   int
	message string

	face   font.Face
	hearts []heart
	cache  map[int]*image.RGBA
	rng    *rand.Rand
}

// NewAnimation prepares an animation over bg, which must already match the
// target dimensions. Heart positions, sizes, and entry frames are drawn
// from a seeded random source.
func NewAnimation(bg *image.RGBA, message string, width, height, fps int, durationSec float64, seed int64) (*Animation, error) {
	total := int(float64(fps) * durationSec)
	if total < 1 {
		return nil, ErrNoFrames
	}

	if runes := []rune(message); len(runes) > MaxMessageRunes {
		message = string(runes[:MaxMessageRunes])
	}

	face, err := loadFace(float64(height) * 0.06)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	hearts := make([]heart, heartCount)
	for i := range hearts {
		minSize := int(float64(width) * 0.03)
		maxSize := int(float64(width) * 0.08)
		if minSize < 4 {
			minSize = 4
		}
		if maxSize <= minSize {
			maxSize = minSize + 1
		}
		hearts[i] = heart{
			start: rng.Intn(total/2 + 1),
			x:     rng.Intn(width),
			size:  minSize + rng.Intn(maxSize-minSize),
		}
	}

	return &Animation{
		bg:      bg,
		width:   width,
		height:  height,
		total:   total,
		message: message,
		face:    face,
		hearts:  hearts,
		cache:   make(map[int]*image.RGBA),
		rng:     rng,
	}, nil
}

// FrameCount returns the number of frames in the clip.
func (a *Animation) FrameCount() int {
	return a.total
}

// RenderFrame renders frame i: background copy, shadowed message, and every
// heart currently in flight.
func (a *Animation) RenderFrame(i int) (*image.RGBA, error) {
	if i < 0 || i >= a.total {
		return nil, fmt.Errorf("effects: frame index %d out of range [0,%d)", i, a.total)
	}

	frame := image.NewRGBA(a.bg.Bounds())
	copy(frame.Pix, a.bg.Pix)

	a.drawMessage(frame)

	for _, h := range a.hearts {
		rel := i - h.start
		if rel < 0 {
			continue
		}
		// Progress from just above the canvas to just below it.
		t := float64(rel) / float64(a.total-h.start)
		y := -float64(h.size) + t*float64(a.height+h.size*2)
		if y > float64(a.height) {
			continue
		}
		drift := int((a.rng.Float64() - 0.5) * float64(h.size) * 0.2)
		a.compositeHeart(frame, h.size, h.x-h.size/2+drift, int(y))
	}

	return frame, nil
}

// drawMessage draws the message centered near the top with a subtle shadow
// behind it for readability.
func (a *Animation) drawMessage(dst *image.RGBA) {
	if a.message == "" {
		return
	}

	d := &font.Drawer{
		Dst:  dst,
		Face: a.face,
	}
	textWidth := d.MeasureString(a.message).Ceil()
	x := (a.width - textWidth) / 2
	y := int(float64(a.height)*0.05) + a.face.Metrics().Ascent.Ceil()

	const shadowOffset = 2
	d.Src = image.NewUniform(color.NRGBA{A: 160})
	d.Dot = fixed.P(x+shadowOffset, y+shadowOffset)
	d.DrawString(a.message)

	d.Src = image.NewUniform(color.White)
	d.Dot = fixed.P(x, y)
	d.DrawString(a.message)
}

// compositeHeart alpha-composites a heart of the given size at (x, y).
func (a *Animation) compositeHeart(dst *image.RGBA, size, x, y int) {
	img, ok := a.cache[size]
	if !ok {
		img = renderHeart(size)
		a.cache[size] = img
	}
	r := image.Rect(x, y, x+size, y+size)
	draw.Draw(dst, r, img, image.Point{}, draw.Over)
}

// renderHeart rasterizes a heart shape: two circles for the lobes and a
// triangle for the point, on a transparent canvas.
func renderHeart(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	radius := float64(size) / 2
	circleRadius := radius * 0.65
	circleOffset := radius * 0.35

	leftCX := radius - circleRadius + circleOffset
	rightCX := radius + circleRadius - circleOffset
	circleCY := radius - circleRadius

	// Triangle from the lobes' outer edges down to the bottom tip.
	topY := radius - circleRadius
	leftX := radius - 2*circleRadius + circleOffset
	rightX := radius + 2*circleRadius - circleOffset

	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			fx := float64(px) + 0.5
			fy := float64(py) + 0.5

			in := inCircle(fx, fy, leftCX, circleCY, circleRadius) ||
				inCircle(fx, fy, rightCX, circleCY, circleRadius) ||
				inTriangle(fx, fy, leftX, topY, rightX, float64(size))
			if in {
				img.SetRGBA(px, py, rgbaFrom(heartColor))
			}
		}
	}
	return img
}

// inCircle reports whether (x, y) lies inside the circle at (cx, cy).
func inCircle(x, y, cx, cy, r float64) bool {
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

// inTriangle reports whether (x, y) lies inside the downward triangle with
// top edge from (leftX, topY) to (rightX, topY) and its tip centered at the
// bottom scanline.
func inTriangle(x, y, leftX, topY, rightX, bottom float64) bool {
	if y < topY || y > bottom {
		return false
	}
	tipX := (leftX + rightX) / 2
	// Interpolate the triangle's half-width at this scanline.
	t := (y - topY) / (bottom - topY)
	halfWidth := (rightX - leftX) / 2 * (1 - t)
	return x >= tipX-halfWidth && x <= tipX+halfWidth
}

// rgbaFrom premultiplies an NRGBA color for direct storage in an RGBA image.
func rgbaFrom(c color.NRGBA) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{
		R: uint8(r >> 8),
		G: uint8(g >> 8),
		B: uint8(b >> 8),
		A: uint8(a >> 8),
	}
}

// loadFace parses the embedded Go Regular face at the given point size.
func loadFace(size float64) (font.Face, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("effects: parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("effects: create font face: %w", err)
	}
	return face, nil
}
