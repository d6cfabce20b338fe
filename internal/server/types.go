// Package server provides the HTTP server for the Frame Export API.
// It includes handlers, middleware, routes, and DTOs separated from the
// domain types.
package server

// Numeric request fields are pointers so an explicit zero is rejected as
// invalid while an omitted field falls back to its default.

// ExportGIFRequest is the HTTP request body for POST /export-gif.
type ExportGIFRequest struct {
	// Frames is the ordered sequence of base64-encoded frame images,
	// each optionally prefixed with a data-URI header.
	Frames []string `json:"frames" validate:"required,min=1"`
	// Width is the output width in pixels. Defaults to 480.
	Width *int `json:"width" validate:"omitempty,min=1"`
	// Height is the output height in pixels. Defaults to 360.
	Height *int `json:"height" validate:"omitempty,min=1"`
	// Delay is the inter-frame delay in milliseconds. Defaults to 250.
	Delay *int `json:"delay" validate:"omitempty,min=1"`
}

// ExportVideoRequest is the HTTP request body for POST /export-video.
type ExportVideoRequest struct {
	// Frames is the ordered sequence of base64-encoded frame images.
	Frames []string `json:"frames" validate:"required,min=1"`
	// AnimationType tags the clip and names the download. Defaults to "default".
	AnimationType string `json:"animationType"`
	// Message is an optional caller label; carried through logs only.
	Message string `json:"message"`
	// Duration is the clip length in seconds. Defaults to 12.
	Duration *float64 `json:"duration" validate:"omitempty,gt=0"`
	// Width is the output width in pixels. Defaults to 480.
	Width *int `json:"width" validate:"omitempty,min=1"`
	// Height is the output height in pixels. Defaults to 360.
	Height *int `json:"height" validate:"omitempty,min=1"`
}

// RenderVideoRequest is the HTTP request body for POST /render-video.
// The server synthesizes the frames: the message is overlaid on the image
// and hearts rain down for the duration of the clip.
type RenderVideoRequest struct {
	// Image is the base64-encoded background image.
	Image string `json:"image" validate:"required"`
	// Message is the text overlaid near the top of every frame.
	Message string `json:"message"`
	// AnimationType selects the effect. Defaults to "hearts".
	AnimationType string `json:"animationType"`
	// Duration is the clip length in seconds. Defaults to 5.
	Duration *float64 `json:"duration" validate:"omitempty,gt=0"`
	// FPS is the output frame rate. Defaults to 15.
	FPS *int `json:"fps" validate:"omitempty,min=1"`
	// Width is the output width in pixels. Defaults to 720.
	Width *int `json:"width" validate:"omitempty,min=1"`
	// Height is the output height in pixels. Defaults to 720.
	Height *int `json:"height" validate:"omitempty,min=1"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error summary.
	Error string `json:"error"`
	// Details carries the underlying diagnostic, when one exists.
	Details string `json:"details,omitempty"`
}

// IndexResponse is the service descriptor served at GET /.
type IndexResponse struct {
	// Status is the service status string.
	Status string `json:"status"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Endpoints maps operation names to their paths.
	Endpoints map[string]string `json:"endpoints"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Timestamp is the current server time in RFC 3339 format.
	Timestamp string `json:"timestamp"`
	// MemoryBytes is the process's current heap allocation.
	MemoryBytes uint64 `json:"memory_bytes"`
	// Uptime is the time elapsed since process start.
	Uptime string `json:"uptime"`
}
