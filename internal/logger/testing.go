package logger

import (
	"log/slog"
	"os"
)

// NewTestLogger logs at WARN unless TEST_DEBUG is set.
func NewTestLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("TEST_DEBUG") != "" {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
