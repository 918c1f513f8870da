// Package logging configures the process-wide slog logger: JSON lines to an
// optional append-only file at the configured level, plus a console sink
// whose level depends on how the process is being run.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
)

// Options selects sinks and levels.
type Options struct {
	Level    string // debug, info, warn, error
	File     string // log file path, empty disables the file sink
	Headless bool   // console shows warnings and errors only
	Verbose  bool   // console shows debug, overriding Headless
}

// Setup builds the logger and installs it as the slog default. The returned
// close function releases the file sink and is safe to call when no file was
// configured.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	level := ParseLevel(opts.Level)

	consoleLevel := level
	if opts.Headless {
		consoleLevel = slog.LevelWarn
	}
	if opts.Verbose {
		consoleLevel = slog.LevelDebug
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: consoleLevel}),
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closeFn = f.Close
	}

	logger := slog.New(fanout(handlers))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything; intended for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}

// fanout returns a handler that forwards records to every sink that wants
// them. A single sink is returned as-is.
func fanout(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return multiHandler(handlers)
}

type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
