package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lepinkainen/registry-preview/internal/config"
	"github.com/lepinkainen/registry-preview/pkg/filesystem"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the default slog logger based on the provided config.
// Output goes to stderr and, when cfg.File is set, to a size-rotated log file.
// The returned closer flushes and closes the file; it is a no-op without one.
func Setup(cfg config.LogConfig, debug bool) (io.Closer, error) {
	level := ParseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := filesystem.EnsureDirectoryExists(cfg.File); err != nil {
			return nil, err
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	slog.SetDefault(slog.New(NewHandler(out, cfg.Format, level)))
	return closer, nil
}

// NewHandler returns a JSON handler for format "json" and a text handler otherwise.
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
