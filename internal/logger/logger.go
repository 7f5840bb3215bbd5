// Package logger is the process-wide structured logger. It writes through
// log/slog to the console, a rotating file, or both.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways is for lifecycle messages (startup, shutdown, batch totals)
// that are written regardless of the configured level.
const LevelAlways = slog.Level(12)

var (
	logger *slog.Logger
	file   *lumberjack.Logger
)

// Initialize replaces the process logger according to config.
func Initialize(config Config) error {
	var handlers []slog.Handler
	level := parseLogLevel(config.Level)

	if config.ConsoleEnabled {
		handlers = append(handlers, newHandler(os.Stdout, config.ConsoleFormat, level))
	}

	if config.FileEnabled {
		if config.FilePath == "" {
			return fmt.Errorf("file logging enabled without a file path")
		}
		file = &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
		}
		handlers = append(handlers, newHandler(file, config.FileFormat, level))
	}

	switch len(handlers) {
	case 0:
		logger = slog.New(newHandler(os.Stdout, "text", level))
	case 1:
		logger = slog.New(handlers[0])
	default:
		logger = slog.New(fanout(handlers))
	}

	return nil
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// Slog returns the underlying logger for code that wants a *slog.Logger,
// falling back to slog's default before Initialize has run.
func Slog() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// replaceLevel renders LevelAlways as ALWAYS instead of ERROR+4.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelAlways {
			a.Value = slog.StringValue("ALWAYS")
		}
	}
	return a
}

// parseLogLevel maps a config level name onto slog. Unknown names are info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func emit(level slog.Level, msg string, args []any) {
	if logger != nil {
		logger.Log(context.Background(), level, msg, args...)
	}
}

// Debug, Info, Warning and Error log at the matching slog level.
func Debug(msg string, args ...any)   { emit(slog.LevelDebug, msg, args) }
func Info(msg string, args ...any)    { emit(slog.LevelInfo, msg, args) }
func Warning(msg string, args ...any) { emit(slog.LevelWarn, msg, args) }
func Error(msg string, args ...any)   { emit(slog.LevelError, msg, args) }

// Always logs at LevelAlways, which passes every level filter.
func Always(msg string, args ...any) { emit(LevelAlways, msg, args) }

// Infof formats msg with fmt.Sprintf; use it only where a plain sentence
// reads better than key/value attributes.
func Infof(format string, args ...any) {
	emit(slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

// fanout sends each record to every handler that accepts its level. A
// failing handler does not stop the others; the first error is returned.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
