// Package observability provides logging, metrics, and tracing utilities.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logger wraps slog.Logger with trace context integration
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger writing to stderr, leaving stdout to command output.
func NewLogger(level, format string) *Logger {
	return NewLoggerWithWriter(os.Stderr, level, format)
}

// NewLoggerWithWriter creates a Logger writing to w.
func NewLoggerWithWriter(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLogLevel(level),
		AddSource: ParseLogLevel(level) == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewNopLogger discards everything. Used by tests and library callers that
// don't want output.
func NewNopLogger() *Logger {
	return NewLoggerWithWriter(io.Discard, "error", "json")
}

// WithTrace extracts trace ID and span ID from context and adds them to log fields
func (l *Logger) WithTrace(ctx context.Context) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return l.Logger
	}

	return l.With(
		slog.String("trace_id", span.SpanContext().TraceID().String()),
		slog.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With(slog.String("component", name))}
}

// ParseLogLevel converts a config string to slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// LogError logs an error with context
func (l *Logger) LogError(ctx context.Context, msg string, err error, fields ...any) {
	l.WithTrace(ctx).Error(msg, append(fields, slog.Any("error", err))...)
}

// LogInfo logs info with context
func (l *Logger) LogInfo(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).Info(msg, fields...)
}

// LogDebug logs debug with context
func (l *Logger) LogDebug(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).Debug(msg, fields...)
}

// LogWarn logs warning with context
func (l *Logger) LogWarn(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).Warn(msg, fields...)
}
