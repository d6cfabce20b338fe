// Package export implements the GIF and video export pipelines. Both
// consume an ordered sequence of encoded frame payloads, decode them one at
// a time, and produce a single output file inside the job's session
// workspace. Decoded buffers are fed to the target encoder and dropped
// immediately so peak memory is one frame, not the whole animation.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"

	"github.com/framelab/export-api/internal/frame"
	"github.com/framelab/export-api/internal/workspace"
)

// ErrEncode is returned when an encoder fails to finalize its output.
var ErrEncode = errors.New("export: encode failed")

// gifOutputName is the result file written into the session workspace.
const gifOutputName = "animation.gif"

// GIFParams configures one GIF export.
type GIFParams struct {
	// Width and Height are the output canvas dimensions in pixels.
	Width  int
	Height int
	// DelayMS is the inter-frame delay in milliseconds. GIF timing has a
	// 10ms resolution; the delay is rounded down to the nearest unit.
	DelayMS int
	// LoopCount follows the GIF convention: 0 repeats forever.
	LoopCount int
}

// EncodeGIF decodes frames strictly in input order and assembles them into
// an animated GIF inside sess. Each decoded frame is quantized with
// Floyd-Steinberg dithering onto the Plan9 palette the moment it arrives.
// The output file is synced and closed before its path is returned, so a
// reader never races the write. Returns the output path.
//
// Any frame decode error aborts the whole encode; partial animations are
// never produced.
func EncodeGIF(ctx context.Context, sess *workspace.Session, frames []string, p GIFParams) (string, error) {
	delay := p.DelayMS / 10
	if delay < 1 {
		delay = 1
	}

	anim := &gif.GIF{LoopCount: p.LoopCount}
	bounds := image.Rect(0, 0, p.Width, p.Height)

	for i, payload := range frames {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("export: gif cancelled at frame %d: %w", i, ctx.Err())
		default:
		}

		rgba, err := frame.Decode(payload, p.Width, p.Height)
		if err != nil {
			return "", fmt.Errorf("export: frame %d: %w", i, err)
		}

		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, rgba, image.Point{})

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	out := sess.Path(gifOutputName)
	f, err := os.Create(out) // #nosec G304 - path is inside the session workspace
	if err != nil {
		return "", fmt.Errorf("%w: create output: %w", ErrEncode, err)
	}

	if err := gif.EncodeAll(f, anim); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: sync output: %w", ErrEncode, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close output: %w", ErrEncode, err)
	}

	return out, nil
}
