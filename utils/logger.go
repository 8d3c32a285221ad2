package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with field names shared by the field tools.
type Logger struct {
	*slog.Logger
}

// NewLogger writes text logs to w at the given level. A nil writer means
// stderr.
func NewLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(io.Discard, slog.Level(1000))
}

func (l *Logger) WithPartition(iproc int) *Logger {
	return &Logger{Logger: l.Logger.With("partition", iproc)}
}

func (l *Logger) WithField(name string) *Logger {
	return &Logger{Logger: l.Logger.With("field", name)}
}

func (l *Logger) WithFile(path string) *Logger {
	return &Logger{Logger: l.Logger.With("file", path)}
}

// ParseLevel maps debug/info/warn/error onto slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
