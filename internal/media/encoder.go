// Package media wraps the external video encoder process.
package media

import "context"

// Encoder turns a materialized still-image sequence into a video container.
// Implementations shell out to ffmpeg or a compatible tool; the call blocks
// until the subprocess resolves to success, failure with diagnostics, or
// cancellation through ctx.
type Encoder interface {
	// EncodeFrameSequence reads the numbered image sequence matching
	// pattern at the given input frame rate and writes an MP4 to output.
	EncodeFrameSequence(ctx context.Context, pattern, output string, fps float64) error
}
