// Package job provides the ExportService use case orchestrating frame
// export jobs: validation, resource limits, session lifecycle, pipeline
// dispatch, and result handoff.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/framelab/export-api/internal/effects"
	"github.com/framelab/export-api/internal/export"
	"github.com/framelab/export-api/internal/frame"
	"github.com/framelab/export-api/internal/media"
	"github.com/framelab/export-api/internal/workspace"
)

// ErrBusy is returned when the concurrent-job limit is reached.
var ErrBusy = errors.New("job: too many concurrent exports")

// ValidationError reports a caller mistake detected before any resource is
// allocated. No session exists when one of these is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "job: invalid request: " + e.Msg
}

// invalid builds a ValidationError.
func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Limits bounds what a single job, and the service as a whole, may consume.
type Limits struct {
	// MaxFrames caps the frame count of one job.
	MaxFrames int
	// MaxPayloadBytes caps the encoded size of one frame payload.
	MaxPayloadBytes int64
	// MaxDimension caps output width and height.
	MaxDimension int
	// MaxJobMemoryBytes caps frames x width x height x 4, the worst-case
	// decoded footprint of a job.
	MaxJobMemoryBytes int64
	// MaxConcurrentJobs caps in-flight exports across all requests.
	MaxConcurrentJobs int64
	// JobTimeout is the hard per-job deadline.
	JobTimeout time.Duration
}

// GIFInput is a validated-on-entry GIF export request.
type GIFInput struct {
	Frames    []string
	Width     int
	Height    int
	DelayMS   int
	LoopCount int
}

// VideoInput is a validated-on-entry video export request.
type VideoInput struct {
	Frames        []string
	AnimationType string
	Message       string
	DurationSec   float64
	Width         int
	Height        int
}

// Result is a finished export. The session workspace backing Path stays
// alive until Close is called; the transport closes the result only after
// the response body has been fully written, so storage is never destroyed
// under a reader.
type Result struct {
	// Path is the output file inside the session workspace.
	Path string
	// MediaType is the response content type ("image/gif" or "video/mp4").
	MediaType string
	// Filename is the suggested download filename.
	Filename string

	sess *workspace.Session
}

// SessionID returns the owning session's identifier, for logging.
func (r *Result) SessionID() string {
	return r.sess.ID
}

// Close destroys the backing session workspace. Idempotent.
func (r *Result) Close() error {
	return r.sess.Destroy()
}

// ExportService coordinates validation, session lifecycle, and pipeline
// dispatch. Requests are independent: the only shared state is the session
// registry and the concurrency semaphore.
type ExportService struct {
	root    *workspace.Root
	encoder media.Encoder
	limits  Limits
	logger  *slog.Logger
	sem     *semaphore.Weighted
}

// NewExportService creates a new ExportService.
func NewExportService(root *workspace.Root, encoder media.Encoder, limits Limits, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		root:    root,
		encoder: encoder,
		limits:  limits,
		logger:  logger,
		sem:     semaphore.NewWeighted(limits.MaxConcurrentJobs),
	}
}

// ExportGIF runs the GIF pipeline for one request.
func (s *ExportService) ExportGIF(ctx context.Context, in GIFInput) (*Result, error) {
	if err := s.validateCommon(in.Frames, in.Width, in.Height); err != nil {
		return nil, err
	}
	if in.DelayMS <= 0 {
		return nil, invalid("delay must be positive, got %d", in.DelayMS)
	}
	if in.LoopCount < 0 {
		return nil, invalid("loop count must not be negative, got %d", in.LoopCount)
	}

	return s.run(ctx, "gif", len(in.Frames), func(ctx context.Context, sess *workspace.Session) (*Result, error) {
		path, err := export.EncodeGIF(ctx, sess, in.Frames, export.GIFParams{
			Width:     in.Width,
			Height:    in.Height,
			DelayMS:   in.DelayMS,
			LoopCount: in.LoopCount,
		})
		if err != nil {
			return nil, err
		}
		return &Result{
			Path:      path,
			MediaType: "image/gif",
			Filename:  "animation.gif",
			sess:      sess,
		}, nil
	})
}

// ExportVideo runs the video pipeline for one request.
func (s *ExportService) ExportVideo(ctx context.Context, in VideoInput) (*Result, error) {
	if err := s.validateCommon(in.Frames, in.Width, in.Height); err != nil {
		return nil, err
	}
	if in.DurationSec <= 0 {
		return nil, invalid("duration must be positive, got %g", in.DurationSec)
	}
	if in.AnimationType == "" {
		in.AnimationType = "default"
	}

	return s.run(ctx, "video", len(in.Frames), func(ctx context.Context, sess *workspace.Session) (*Result, error) {
		path, err := export.EncodeVideo(ctx, sess, s.encoder, in.Frames, export.VideoParams{
			Width:       in.Width,
			Height:      in.Height,
			DurationSec: in.DurationSec,
		})
		if err != nil {
			return nil, err
		}
		return &Result{
			Path:      path,
			MediaType: "video/mp4",
			Filename:  in.AnimationType + ".mp4",
			sess:      sess,
		}, nil
	})
}

// RenderInput is a validated-on-entry request for a server-rendered clip:
// one background image plus a message, animated with the heart-rain effect.
type RenderInput struct {
	Image         string
	Message       string
	AnimationType string
	DurationSec   float64
	FPS           int
	Width         int
	Height        int
}

// RenderVideo synthesizes frames server-side with the effects renderer and
// feeds them through the video pipeline.
func (s *ExportService) RenderVideo(ctx context.Context, in RenderInput) (*Result, error) {
	if in.Image == "" {
		return nil, invalid("image must not be empty")
	}
	if int64(len(in.Image)) > s.limits.MaxPayloadBytes {
		return nil, invalid("image payload exceeds %d bytes", s.limits.MaxPayloadBytes)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return nil, invalid("width and height must be positive, got %dx%d", in.Width, in.Height)
	}
	if in.Width > s.limits.MaxDimension || in.Height > s.limits.MaxDimension {
		return nil, invalid("dimensions %dx%d exceed limit %d", in.Width, in.Height, s.limits.MaxDimension)
	}
	if in.DurationSec <= 0 {
		return nil, invalid("duration must be positive, got %g", in.DurationSec)
	}
	if in.FPS <= 0 {
		return nil, invalid("fps must be positive, got %d", in.FPS)
	}
	totalFrames := int(float64(in.FPS) * in.DurationSec)
	if totalFrames < 1 {
		return nil, invalid("fps %d over %gs yields no frames", in.FPS, in.DurationSec)
	}
	if totalFrames > s.limits.MaxFrames {
		return nil, invalid("frame count %d exceeds limit %d", totalFrames, s.limits.MaxFrames)
	}
	if in.AnimationType == "" {
		in.AnimationType = "hearts"
	}

	bg, err := frame.Decode(in.Image, in.Width, in.Height)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, "render", totalFrames, func(ctx context.Context, sess *workspace.Session) (*Result, error) {
		anim, err := effects.NewAnimation(bg, in.Message, in.Width, in.Height, in.FPS, in.DurationSec, time.Now().UnixNano())
		if err != nil {
			return nil, err
		}
		path, err := export.EncodeVideoSequence(ctx, sess, s.encoder, anim.FrameCount(), anim.RenderFrame, export.VideoParams{
			Width:       in.Width,
			Height:      in.Height,
			DurationSec: in.DurationSec,
		})
		if err != nil {
			return nil, err
		}
		return &Result{
			Path:      path,
			MediaType: "video/mp4",
			Filename:  in.AnimationType + ".mp4",
			sess:      sess,
		}, nil
	})
}

// run acquires a job slot, creates the session, executes the pipeline under
// the job deadline, and guarantees the workspace is destroyed on any
// failure path. On success the session lives on inside the Result until the
// caller closes it.
func (s *ExportService) run(ctx context.Context, kind string, frameCount int, pipeline func(context.Context, *workspace.Session) (*Result, error)) (*Result, error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.limits.JobTimeout)
	defer cancel()

	sess, err := s.root.Create(ctx)
	if err != nil {
		return nil, err
	}
	sess.SetState(workspace.StateActive)

	s.logger.Info("export started",
		slog.String("kind", kind),
		slog.String("session_id", sess.ID),
		slog.Int("frames", frameCount),
	)
	start := time.Now()

	res, err := pipeline(ctx, sess)
	if err != nil {
		sess.SetState(workspace.StateFailed)
		if derr := sess.Destroy(); derr != nil {
			// Cleanup failure never masks the pipeline error.
			s.logger.Error("session cleanup failed",
				slog.String("session_id", sess.ID),
				slog.String("error", derr.Error()),
			)
		}
		s.logger.Error("export failed",
			slog.String("kind", kind),
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	sess.SetState(workspace.StateCompleted)
	s.logger.Info("export completed",
		slog.String("kind", kind),
		slog.String("session_id", sess.ID),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// validateCommon enforces the shared limits before any allocation happens.
func (s *ExportService) validateCommon(frames []string, width, height int) error {
	if len(frames) == 0 {
		return invalid("frames must not be empty")
	}
	if len(frames) > s.limits.MaxFrames {
		return invalid("frame count %d exceeds limit %d", len(frames), s.limits.MaxFrames)
	}
	if width <= 0 || height <= 0 {
		return invalid("width and height must be positive, got %dx%d", width, height)
	}
	if width > s.limits.MaxDimension || height > s.limits.MaxDimension {
		return invalid("dimensions %dx%d exceed limit %d", width, height, s.limits.MaxDimension)
	}
	for i, f := range frames {
		if f == "" {
			return invalid("frame %d is empty", i)
		}
		if int64(len(f)) > s.limits.MaxPayloadBytes {
			return invalid("frame %d payload exceeds %d bytes", i, s.limits.MaxPayloadBytes)
		}
	}
	// Worst-case decoded footprint: every frame at 4 bytes per pixel.
	decoded := int64(len(frames)) * int64(width) * int64(height) * 4
	if decoded > s.limits.MaxJobMemoryBytes {
		return invalid("decoded size %d exceeds memory ceiling %d", decoded, s.limits.MaxJobMemoryBytes)
	}
	return nil
}
