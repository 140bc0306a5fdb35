package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/timesheet-mcp/internal/config"
	"github.com/goodtune/timesheet-mcp/internal/metrics"
	"github.com/goodtune/timesheet-mcp/internal/remote"
	"github.com/goodtune/timesheet-mcp/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timesheet tools on stdio",
	Long:  `Start the MCP server on stdin/stdout for an assistant host to drive.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("remote", cfg.Remote.BaseURL).
		Msg("Starting timesheet-mcp")

	// Initialize remote service client
	client, err := remote.NewClient(remote.Config{
		BaseURL:  cfg.Remote.BaseURL,
		APIKey:   cfg.Remote.APIKey,
		TenantID: cfg.Remote.TenantID,
		Timeout:  parseDuration(cfg.Remote.Timeout, 30*time.Second),
		Encoding: remote.Encoding{
			TimeFormat: remote.TimeFormat(cfg.Remote.TimeFormat),
			BreakUnit:  remote.BreakUnit(cfg.Remote.BreakUnit),
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize remote client: %w", err)
	}

	// Initialize tool registry
	registry := tools.NewRegistry(client, tools.Defaults{
		StartTime:    cfg.Defaults.StartTime,
		EndTime:      cfg.Defaults.EndTime,
		BreakMinutes: cfg.Defaults.BreakMinutes,
	}, logger)

	srv := server.NewMCPServer(
		"timesheet-mcp",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	registry.Install(srv)

	// Initialize Metrics Server (if enabled)
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Listen, logger)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}

		logger.Info().
			Str("addr", cfg.Metrics.Listen).
			Msg("Metrics Server started")
	}

	logger.Info().Msg("Serving timesheet tools on stdio")

	// ServeStdio traps SIGINT/SIGTERM itself and unwinds with a canceled
	// context.
	if err := server.ServeStdio(srv); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server error: %w", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("timesheet-mcp stopped")

	return nil
}

// setupLogger configures the logger based on configuration. Logs always go
// to stderr: stdout carries the protocol stream.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
