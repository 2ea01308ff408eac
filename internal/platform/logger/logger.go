// Package logger provides structured logging functionality for the application.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lunaris-ai/scheduler/internal/config"
)

// Setup initializes the application's logging based on the provided server
// configuration. It creates a structured JSON logger at the configured
// level, sets it as the process default, and returns it. An unrecognized
// level falls back to info with a warning rather than failing startup.
func Setup(cfg config.ServerConfig) *slog.Logger {
	return setup(cfg, os.Stdout)
}

func setup(cfg config.ServerConfig, w io.Writer) *slog.Logger {
	level, ok := parseLevel(cfg.LogLevel)
	if !ok {
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLevel maps a config string to a slog level, case-insensitively.
// The second return value reports whether the input was recognized.
func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
