package export

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/framelab/export-api/internal/frame"
	"github.com/framelab/export-api/internal/media"
	"github.com/framelab/export-api/internal/workspace"
)

// Names used inside the session workspace. Frame indexes are zero-padded to
// four digits so ffmpeg's image2 demuxer reads them in order.
const (
	framePattern    = "frame_%04d.png"
	videoOutputName = "output.mp4"
)

// VideoParams configures one video export.
type VideoParams struct {
	// Width and Height are the output canvas dimensions in pixels.
	Width  int
	Height int
	// DurationSec is the total clip length; the effective input frame rate
	// is frameCount/DurationSec. Must be positive (validated upstream).
	DurationSec float64
}

// FrameFunc yields the decoded frame at index i. Frames are requested
// strictly in order, one at a time, so implementations can render or decode
// lazily and never hold more than one frame.
type FrameFunc func(i int) (*image.RGBA, error)

// EncodeVideo decodes the supplied payloads in input order, materializes
// each one as a numbered PNG inside sess, then runs the external encoder
// over the sequence. Returns the path of the produced MP4.
//
// Audio is not muxed: callers supplying audio alongside frames get a silent
// video. Known gap, documented in the README, not a silent failure.
func EncodeVideo(ctx context.Context, sess *workspace.Session, enc media.Encoder, frames []string, p VideoParams) (string, error) {
	next := func(i int) (*image.RGBA, error) {
		return frame.Decode(frames[i], p.Width, p.Height)
	}
	return EncodeVideoSequence(ctx, sess, enc, len(frames), next, p)
}

// EncodeVideoSequence is the core of the video pipeline: it pulls count
// frames from next, writes each to the session workspace, and encodes the
// resulting sequence at count/DurationSec frames per second.
func EncodeVideoSequence(ctx context.Context, sess *workspace.Session, enc media.Encoder, count int, next FrameFunc, p VideoParams) (string, error) {
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("export: video cancelled at frame %d: %w", i, ctx.Err())
		default:
		}

		rgba, err := next(i)
		if err != nil {
			return "", fmt.Errorf("export: frame %d: %w", i, err)
		}

		if err := writeFramePNG(sess.Path(fmt.Sprintf(framePattern, i)), rgba); err != nil {
			return "", fmt.Errorf("%w: %w", ErrEncode, err)
		}
	}

	fps := float64(count) / p.DurationSec
	out := sess.Path(videoOutputName)

	if err := enc.EncodeFrameSequence(ctx, sess.Path(framePattern), out, fps); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return out, nil
}

// writeFramePNG writes one decoded frame to disk, cleaning up on failure.
func writeFramePNG(path string, img *image.RGBA) error {
	f, err := os.Create(path) // #nosec G304 - path is inside the session workspace
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode frame png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close frame file: %w", err)
	}
	return nil
}
