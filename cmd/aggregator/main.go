package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/config"
	"github.com/ThetaSpace/swap-quote-aggregator/internal/runner"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	envPath := flag.String("env", ".env", "Path to optional .env file")
	flag.Parse()

	// .env is optional; variables already set win
	envErr := godotenv.Load(*envPath)

	// Bootstrap logger until the config is known
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("Failed to load env file", "path", *envPath, "error", envErr)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "configPath", *configPath, "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg)
	logger.Info("Config loaded successfully",
		"app", cfg.App.Name,
		"sources", cfg.SourceNames(),
		"gasReference", cfg.GasReference.Mode,
		"feed", cfg.Feed.Enabled)

	ctx := context.Background()

	// Create and run service
	r, err := runner.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create runner", "error", err)
		os.Exit(1)
	}

	if err := r.Run(ctx); err != nil {
		logger.Error("Service error", "error", err)
		os.Exit(1)
	}
}

// setupLogger writes to stdout and, when a log file is configured, to a rotating file
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.App.LogLevel)}

	if cfg.Log.File == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		slog.Error("Failed to create logs directory", "error", err)
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	file := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	return slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)).
		With("app", cfg.App.Name)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
