package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidFrameRate is returned when the computed frame rate is not positive.
	ErrInvalidFrameRate = errors.New("media: frame rate must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
)

// Compile-time check that FFmpegEncoder implements Encoder.
var _ Encoder = (*FFmpegEncoder)(nil)

// FFmpegEncoder implements Encoder using the ffmpeg CLI.
type FFmpegEncoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegEncoder creates a new FFmpegEncoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegEncoder(ffmpegPath string) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath}
}

// EncodeFrameSequence encodes a numbered still-image sequence into an
// H.264/MP4 container. The pattern is an ffmpeg image2 pattern such as
// "/work/<session>/frame_%04d.png"; fps is the input frame rate.
//
// Encoding choices: libx264 at constant quality (crf 23), yuv420p chroma
// subsampling for broad player compatibility, and +faststart so the moov
// atom sits at the front of the file and playback can begin mid-download.
func (e *FFmpegEncoder) EncodeFrameSequence(ctx context.Context, pattern, output string, fps float64) error {
	if fps <= 0 {
		return fmt.Errorf("%w: got %.3f", ErrInvalidFrameRate, fps)
	}

	args := []string{
		"-y", // Overwrite output file without asking
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", pattern, // Numbered input sequence
		"-c:v", "libx264", // Video codec
		"-preset", "fast", // Encoding speed preset
		"-crf", "23", // Constant quality
		"-pix_fmt", "yuv420p", // 4:2:0 for player compatibility
		"-movflags", "+faststart", // moov atom first
		output,
	}

	return e.run(ctx, args)
}

// run executes ffmpeg with the given arguments and returns an error
// carrying stderr output if the command fails.
func (e *FFmpegEncoder) run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("media: ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// ProbeFrameCount returns the number of video frames in a media file.
// It uses ffprobe to count packets in the first video stream.
func (e *FFmpegEncoder) ProbeFrameCount(ctx context.Context, path string) (int, error) {
	// #nosec G204 - path is provided by trusted internal code
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("media: ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	count, err := strconv.Atoi(strings.TrimSpace(stdout.String()))
	if err != nil {
		return 0, fmt.Errorf("media: parse frame count: %w", err)
	}

	return count, nil
}

// ProbeFrameRate returns the declared average frame rate of the first
// video stream, as a float.
func (e *FFmpegEncoder) ProbeFrameRate(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - path is provided by trusted internal code
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("media: ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseRate(strings.TrimSpace(stdout.String()))
}

// parseRate parses an ffprobe rational like "10/1" or a plain float.
func parseRate(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("media: parse frame rate %q: %w", s, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("media: parse frame rate %q: zero or invalid denominator", s)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("media: parse frame rate %q: %w", s, err)
	}
	return f, nil
}
