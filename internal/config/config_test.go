package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/tmp/frame-export", cfg.WorkspaceRoot)
	assert.Equal(t, 600, cfg.MaxFrames)
	assert.Equal(t, int64(5242880), cfg.MaxPayloadBytes)
	assert.Equal(t, int64(4), cfg.MaxConcurrentJobs)
	assert.Equal(t, 2048, cfg.MaxDimension)
	assert.Equal(t, 120*time.Second, cfg.JobTimeout)
	assert.Equal(t, 10*time.Minute, cfg.SessionMaxAge)
	assert.Equal(t, time.Minute, cfg.ReapInterval)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("WORKSPACE_ROOT", "/var/scratch/export")
	t.Setenv("MAX_FRAMES", "100")
	t.Setenv("MAX_CONCURRENT_JOBS", "2")
	t.Setenv("JOB_TIMEOUT", "30s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/var/scratch/export", cfg.WorkspaceRoot)
	assert.Equal(t, 100, cfg.MaxFrames)
	assert.Equal(t, int64(2), cfg.MaxConcurrentJobs)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func TestLoad_InvalidLimits(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero max frames", "MAX_FRAMES", "0"},
		{"negative payload cap", "MAX_PAYLOAD_BYTES", "-1"},
		{"zero concurrency", "MAX_CONCURRENT_JOBS", "0"},
		{"zero dimension cap", "MAX_DIMENSION", "0"},
		{"zero timeout", "JOB_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLimit)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		cfg := &Config{LogFormat: "json", LogLevel: "debug"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
	})

	t.Run("text format with unknown level falls back to info", func(t *testing.T) {
		cfg := &Config{LogFormat: "text", LogLevel: "bogus"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input).String(), "input %q", tt.input)
	}
}
