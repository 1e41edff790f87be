// Package logger holds the package-level structured logger shared by the
// slab packages. It discards everything until Init is called or SLABKIT_LOG
// is set in the environment.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging.
var L *slog.Logger = slog.New(slog.DiscardHandler)

const (
	// EnvLog enables debug logging to stderr when set to anything but "" or "0".
	// The value "json" selects the JSON handler.
	EnvLog = "SLABKIT_LOG"

	// EnvLogAlloc enables per-chunk allocation tracing.
	EnvLogAlloc = "SLABKIT_LOG_ALLOC"
)

// TraceAlloc is the runtime toggle for per-chunk allocation tracing.
var TraceAlloc = os.Getenv(EnvLogAlloc) != ""

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Use the JSON handler instead of the text handler
}

func init() {
	v := os.Getenv(EnvLog)
	if v == "" || v == "0" {
		return
	}
	Init(Options{
		Enabled: true,
		Level:   slog.LevelDebug,
		JSON:    strings.EqualFold(v, "json"),
	})
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}

	hopts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, hopts))
		return
	}
	L = slog.New(slog.NewTextHandler(w, hopts))
}

// Enabled reports whether the logger emits records at level.
func Enabled(level slog.Level) bool {
	return L.Enabled(context.Background(), level)
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
