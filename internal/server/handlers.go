package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/framelab/export-api/internal/export"
	"github.com/framelab/export-api/internal/frame"
	"github.com/framelab/export-api/internal/job"
	"github.com/framelab/export-api/internal/media"
	"github.com/framelab/export-api/internal/workspace"
)

// Default request parameters, applied when a field is omitted.
const (
	defaultWidth    = 480
	defaultHeight   = 360
	defaultDelayMS  = 250
	defaultDuration = 12

	defaultRenderSize     = 720
	defaultRenderFPS      = 15
	defaultRenderDuration = 5
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.ExportService
	validator *validator.Validate
	logger    *slog.Logger
	started   time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ExportService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
		started:   time.Now(),
	}
}

// Index handles GET / requests with a service descriptor.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{
		Status:  "ok",
		Message: "frame export service: POST base64 frames, receive GIF or MP4",
		Endpoints: map[string]string{
			"health":       "/health",
			"export-gif":   "/export-gif",
			"export-video": "/export-video",
			"render-video": "/render-video",
		},
	})
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		MemoryBytes: mem.HeapAlloc,
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	})
}

// ExportGIF handles POST /export-gif requests.
func (h *Handlers) ExportGIF(w http.ResponseWriter, r *http.Request) {
	var req ExportGIFRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.ExportGIF(r.Context(), job.GIFInput{
		Frames:    req.Frames,
		Width:     intOr(req.Width, defaultWidth),
		Height:    intOr(req.Height, defaultHeight),
		DelayMS:   intOr(req.Delay, defaultDelayMS),
		LoopCount: 0, // loop forever
	})
	if err != nil {
		h.writeExportError(w, err)
		return
	}

	h.streamResult(w, res)
}

// ExportVideo handles POST /export-video requests.
func (h *Handlers) ExportVideo(w http.ResponseWriter, r *http.Request) {
	var req ExportVideoRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.ExportVideo(r.Context(), job.VideoInput{
		Frames:        req.Frames,
		AnimationType: req.AnimationType,
		Message:       req.Message,
		DurationSec:   floatOr(req.Duration, defaultDuration),
		Width:         intOr(req.Width, defaultWidth),
		Height:        intOr(req.Height, defaultHeight),
	})
	if err != nil {
		h.writeExportError(w, err)
		return
	}

	h.streamResult(w, res)
}

// RenderVideo handles POST /render-video requests.
func (h *Handlers) RenderVideo(w http.ResponseWriter, r *http.Request) {
	var req RenderVideoRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.RenderVideo(r.Context(), job.RenderInput{
		Image:         req.Image,
		Message:       req.Message,
		AnimationType: req.AnimationType,
		DurationSec:   floatOr(req.Duration, defaultRenderDuration),
		FPS:           intOr(req.FPS, defaultRenderFPS),
		Width:         intOr(req.Width, defaultRenderSize),
		Height:        intOr(req.Height, defaultRenderSize),
	})
	if err != nil {
		h.writeExportError(w, err)
		return
	}

	h.streamResult(w, res)
}

// intOr returns *p, or def when the field was omitted.
func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// floatOr returns *p, or def when the field was omitted.
func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// decodeBody decodes and validates a JSON request body, writing the error
// response itself when the body is unusable.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return false
	}
	return true
}

// streamResult sends the produced media file and destroys the session
// workspace only after the response body has been fully written. A client
// that disconnects mid-stream still triggers cleanup on return.
func (h *Handlers) streamResult(w http.ResponseWriter, res *job.Result) {
	defer func() {
		if err := res.Close(); err != nil {
			h.logger.Error("session cleanup failed",
				slog.String("session_id", res.SessionID()),
				slog.String("error", err.Error()),
			)
		}
	}()

	f, err := os.Open(res.Path) // #nosec G304 - path is produced by the pipeline
	if err != nil {
		h.logger.Error("failed to open result",
			slog.String("session_id", res.SessionID()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read result", "")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read result", "")
		return
	}

	w.Header().Set("Content-Type", res.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))

	if _, err := io.Copy(w, f); err != nil {
		// Headers are gone; nothing to send, just record the broken stream.
		h.logger.Warn("response stream interrupted",
			slog.String("session_id", res.SessionID()),
			slog.String("error", err.Error()),
		)
	}
}

// writeExportError maps service errors onto the HTTP error taxonomy.
func (h *Handlers) writeExportError(w http.ResponseWriter, err error) {
	var verr *job.ValidationError
	var ferr *media.FFmpegError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid request", verr.Msg)
	case errors.Is(err, job.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, "server busy", "too many concurrent exports, retry later")
	case errors.Is(err, frame.ErrDecode), errors.Is(err, frame.ErrEmptyPayload):
		writeError(w, http.StatusUnprocessableEntity, "frame decode failed", err.Error())
	case errors.As(err, &ferr):
		h.logger.Error("encoder failed", slog.String("stderr", ferr.Stderr))
		writeError(w, http.StatusInternalServerError, "video encoding failed", ferr.Stderr)
	case errors.Is(err, export.ErrEncode):
		writeError(w, http.StatusInternalServerError, "encoding failed", err.Error())
	case errors.Is(err, workspace.ErrSessionCreate), errors.Is(err, workspace.ErrRootUnavailable):
		writeError(w, http.StatusInternalServerError, "workspace allocation failed", err.Error())
	default:
		h.logger.Error("export failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "export failed", err.Error())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
