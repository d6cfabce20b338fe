// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside the valid range.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidLimit is returned when a resource limit is not positive.
	ErrInvalidLimit = errors.New("config: resource limits must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Encoder settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Workspace settings
	WorkspaceRoot string        `env:"WORKSPACE_ROOT, default=/tmp/frame-export" json:"workspace_root"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE, default=10m" json:"session_max_age"`
	ReapInterval  time.Duration `env:"REAPER_INTERVAL, default=1m" json:"reaper_interval"`

	// Resource limits, enforced at validation time before any allocation
	MaxFrames         int           `env:"MAX_FRAMES, default=600" json:"max_frames"`
	MaxPayloadBytes   int64         `env:"MAX_PAYLOAD_BYTES, default=5242880" json:"max_payload_bytes"`
	MaxConcurrentJobs int64         `env:"MAX_CONCURRENT_JOBS, default=4" json:"max_concurrent_jobs"`
	MaxDimension      int           `env:"MAX_DIMENSION, default=2048" json:"max_dimension"`
	MaxJobMemoryBytes int64         `env:"MAX_JOB_MEMORY_BYTES, default=536870912" json:"max_job_memory_bytes"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT, default=120s" json:"job_timeout"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if any value fails validation.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if c.MaxFrames <= 0 || c.MaxPayloadBytes <= 0 || c.MaxConcurrentJobs <= 0 ||
		c.MaxDimension <= 0 || c.MaxJobMemoryBytes <= 0 {
		return ErrInvalidLimit
	}
	if c.JobTimeout <= 0 || c.SessionMaxAge <= 0 || c.ReapInterval <= 0 {
		return fmt.Errorf("%w: timeouts and intervals", ErrInvalidLimit)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, FFmpegPath: %s, WorkspaceRoot: %s, MaxFrames: %d, MaxPayloadBytes: %d, MaxConcurrentJobs: %d, MaxDimension: %d, JobTimeout: %s, SessionMaxAge: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.FFmpegPath,
		c.WorkspaceRoot,
		c.MaxFrames,
		c.MaxPayloadBytes,
		c.MaxConcurrentJobs,
		c.MaxDimension,
		c.JobTimeout,
		c.SessionMaxAge,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
