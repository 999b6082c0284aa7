package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Logger wraps a *slog.Logger and knows how to pull request-scoped
// attributes out of a context.Context before emitting a line.
type Logger struct {
	slog *slog.Logger
}

// Config configures a Logger.
type Config struct {
	Level     string // "debug", "info", "warn", "error"
	Format    string // "json" or "text"
	AddSource bool
	Writer    io.Writer // defaults to os.Stdout
}

// New builds a Logger from Config.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	switch cfg.Format {
	case "", "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return &Logger{slog: slog.New(handler)}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// With attaches static key/value attributes to every subsequent line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.slog.DebugContext(ctx, msg, append(attrsFromContext(ctx), args...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.slog.InfoContext(ctx, msg, append(attrsFromContext(ctx), args...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.slog.WarnContext(ctx, msg, append(attrsFromContext(ctx), args...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.slog.ErrorContext(ctx, msg, append(attrsFromContext(ctx), args...)...)
}

// Slog returns the underlying *slog.Logger for callers that need direct
// interop (e.g. wiring into net/http's ErrorLog).
func (l *Logger) Slog() *slog.Logger { return l.slog }
