package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output by default so
// log aggregation can index the audit fields; set SENTRA_LOG_FORMAT=text for
// local development.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("SENTRA_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if os.Getenv("SENTRA_LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
