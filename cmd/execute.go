// Package cmd implements the ragdemo command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ragstack/ragdemo/internal/config"
	"github.com/ragstack/ragdemo/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the entry point called from main. It loads .env if present,
// installs the logger, and dispatches to cobra.
func Execute() error {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	logger := initLogger()
	slog.SetDefault(logger)

	return rootCmd.Execute()
}

// initLogger builds the application logger. DEBUG in the environment
// enables debug-level output. Logs go to stderr so stdout stays clean for
// answers and, in MCP mode, for JSON-RPC framing.
func initLogger() log.Logger {
	return log.New(log.Config{
		Level: logLevel(),
	})
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadConfig loads, flag-overrides, and validates the configuration shared
// by all commands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	applyFlagOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
