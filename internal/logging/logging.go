// Package logging provides structured logging with slog for wayentry.
//
// A pinentry is spawned by gpg-agent with its stdout owned by the Assuan
// protocol, so logs go to stderr only. Nothing that passes through the
// entry dialog may reach the log at any level: use Secret for attributes
// whose value must never be printed.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// JSON selects JSON output instead of human-readable text.
	JSON bool

	// Component is the name of the component using this logger.
	Component string

	// Output overrides the destination. Defaults to stderr.
	Output io.Writer
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:     LevelInfo,
		JSON:      false,
		Component: "wayentry",
	}
}

// ParseLevel converts a config string into a Level. Unknown strings
// fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// New creates a logger with the given configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}
	return logger
}

// Secret returns an attribute whose value is always redacted. Callers log
// the presence of a secret, never its content.
func Secret(key string) slog.Attr {
	return slog.String(key, "[redacted]")
}
