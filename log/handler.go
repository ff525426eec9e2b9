// Package log provides structured logging (slog) for launcher plugins.
// Standard output belongs to the launcher protocol, so log output always
// goes to stderr or to a file under the plugin's scratch path.
package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Option configures the logger.
type Option func(*config)

type config struct {
	level     slog.Level
	addSource bool
	programID string
	writer    io.Writer
}

func defaultConfig() config {
	return config{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) Option {
	return func(c *config) {
		c.addSource = enabled
	}
}

// WithProgramID attaches the plugin's program ID to every record.
func WithProgramID(programID string) Option {
	return func(c *config) {
		c.programID = programID
	}
}

// WithWriter directs log output to the given writer instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// NewLogger creates a logger with the given options.
func NewLogger(opts ...Option) *slog.Logger {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	handler := slog.NewTextHandler(cfg.writer, &slog.HandlerOptions{
		Level:     cfg.level,
		AddSource: cfg.addSource,
	})

	logger := slog.New(handler)
	if cfg.programID != "" {
		logger = logger.With("program", cfg.programID)
	}
	return logger
}

// FileDestination opens (creating if needed) an append-only log file named
// after the program ID under the given directory. The caller owns closing it.
func FileDestination(dir, programID string) (io.WriteCloser, error) {
	path := filepath.Join(dir, programID+".log")
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
