package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. It discards output until Init is called.
var Log = slog.New(slog.NewTextHandler(io.Discard, nil))

// Init configures Log from HITWIRE_LOG_LEVEL and HITWIRE_LOG_SINK.
func Init() {
	InitWithLevel("")
}

// InitWithLevel configures Log with an explicit level ("debug", "info",
// "warn", "error"). An empty level falls back to HITWIRE_LOG_LEVEL.
// HITWIRE_LOG_SINK may name a file as "file:/path/to/log"; otherwise logs go
// to stderr.
func InitWithLevel(level string) {
	sink := os.Getenv("HITWIRE_LOG_SINK")
	lvl := strings.TrimSpace(level)
	if lvl == "" {
		lvl = os.Getenv("HITWIRE_LOG_LEVEL")
	}
	lv := ParseLevel(lvl)

	if strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			Log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lv}))
			return
		}
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
	}
	Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

// SetOutput points Log at w. Used by tests and embedding applications.
func SetOutput(w io.Writer, level slog.Level) {
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}
