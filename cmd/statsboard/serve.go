package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statsboard"
	"github.com/jpalmerr/statsboard/config"
	"github.com/jpalmerr/statsboard/internal/history"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates the CLI logger described by cfg.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// serveCmd starts the Statsboard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the Statsboard dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Start polling every configured panel
  - Record panel updates to SQLite when history.path is set
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  statsboard serve -c config.yaml
  statsboard serve --config /etc/statsboard/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

// buildBoard builds a board from cfg. Panels, port, ordering and title come
// from the config; extra options are appended.
func buildBoard(cfg *config.Config, logger *slog.Logger, extra ...statsboard.Option) (*statsboard.Board, error) {
	panels, err := config.BuildPanels(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build panels: %w", err)
	}
	if len(panels) == 0 {
		return nil, fmt.Errorf("no panels configured")
	}

	opts, err := config.BoardOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build board options: %w", err)
	}
	opts = append(opts,
		statsboard.WithPanels(panels...),
		statsboard.WithLogger(logger),
	)
	opts = append(opts, extra...)

	board, err := statsboard.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Statsboard: %w", err)
	}
	return board, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.Log)

	logger.Info("config loaded",
		"backend", cfg.Backend != nil,
		"panels", len(cfg.Panels),
		"grids", len(cfg.Grids),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var extra []statsboard.Option
	if cfg.History.Path != "" {
		rec, err := history.Open(logger, cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("failed to close history", "error", err)
			}
		}()

		go rec.RunCleanup(ctx, cfg.History.CleanupInterval.Duration(), cfg.History.Retention.Duration())
		extra = append(extra, statsboard.WithRecorder(rec))

		logger.Info("history enabled",
			"path", cfg.History.Path,
			"retention", cfg.History.Retention.Duration().String(),
		)
	}

	board, err := buildBoard(cfg, logger, extra...)
	if err != nil {
		return err
	}

	logger.Info("starting server",
		"port", board.Port(),
		"panels", len(board.Panels()),
		"ordering", board.Ordering().String(),
	)

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
