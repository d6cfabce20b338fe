// Package bootstrap provides dependency initialization for the Frame
// Export API.
package bootstrap

import (
	"log/slog"

	"github.com/framelab/export-api/internal/config"
	"github.com/framelab/export-api/internal/job"
	"github.com/framelab/export-api/internal/media"
	"github.com/framelab/export-api/internal/workspace"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	ExportService *job.ExportService
	WorkspaceRoot *workspace.Root
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	root, err := workspace.NewRoot(cfg.WorkspaceRoot, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("workspace root ready",
		slog.String("dir", root.Dir()),
	)

	encoder := media.NewFFmpegEncoder(cfg.FFmpegPath)

	limits := job.Limits{
		MaxFrames:         cfg.MaxFrames,
		MaxPayloadBytes:   cfg.MaxPayloadBytes,
		MaxDimension:      cfg.MaxDimension,
		MaxJobMemoryBytes: cfg.MaxJobMemoryBytes,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
	}

	svc := job.NewExportService(root, encoder, limits, logger)

	return &Dependencies{
		ExportService: svc,
		WorkspaceRoot: root,
	}, nil
}
