// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type Config struct {
	Level  slog.Level
	Format string // "text" or "json"
}

func NewLogger(cfg Config) *slog.Logger {
	return newLogger(os.Stderr, cfg)
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     cfg.Level,
			AddSource: cfg.Level <= slog.LevelDebug,
		}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      cfg.Level,
		AddSource:  cfg.Level <= slog.LevelDebug,
		TimeFormat: time.DateTime,
	}))
}

// ParseLevel accepts DEBUG, INFO, WARN, WARNING and ERROR; anything else is INFO.
func ParseLevel(value string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
