// Package main provides the entry point for the Frame Export API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framelab/export-api/internal/bootstrap"
	"github.com/framelab/export-api/internal/config"
	"github.com/framelab/export-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting frame export API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("workspace_root", cfg.WorkspaceRoot),
		slog.Int("max_frames", cfg.MaxFrames),
		slog.Int64("max_concurrent_jobs", cfg.MaxConcurrentJobs),
		slog.Duration("job_timeout", cfg.JobTimeout),
	)

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Background reaper sweeps workspaces whose jobs hung or whose clients
	// vanished before cleanup could run.
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go deps.WorkspaceRoot.RunReaper(reaperCtx, cfg.ReapInterval, cfg.SessionMaxAge)

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.ExportService, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.JobTimeout + 60*time.Second, // Allow for encoding plus streaming
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed",
			slog.String("error", err.Error()),
		)
	}

	// No workspace survives a restart: remove every outstanding session.
	stopReaper()
	if err := deps.WorkspaceRoot.Shutdown(); err != nil {
		logger.Error("workspace cleanup failed",
			slog.String("error", err.Error()),
		)
	}

	logger.Info("server stopped gracefully")
	return nil
}
