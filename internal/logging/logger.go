// Package logging provides structured logging configuration using log/slog.
//
// Every ingestion pass is tagged with a run ID so that all log entries
// belonging to one scheduled invocation can be correlated in aggregated logs.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewRunLogger returns a logger tagged with a fresh run ID.
//
// All log entries produced during one ingestion pass carry the same
// run_id, enabling correlation across the whole pass:
//
//	logger := logging.NewRunLogger()
//	logger.Info("ingestion started")
func NewRunLogger() *slog.Logger {
	return slog.Default().With("run_id", uuid.NewString())
}
