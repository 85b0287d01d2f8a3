package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger wraps slog.Logger with redaction and request id support.
type Logger struct {
	*slog.Logger
	redactor *Redactor
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	// Level is shared with config reload; a nil Level logs at INFO.
	Level     *slog.LevelVar
	Output    io.Writer
	Format    string // "json" or "text"
	AddSource bool
}

// NewLogger creates a logger writing JSON or text records.
func NewLogger(cfg LoggerConfig, redactor *Redactor) *Logger {
	opts := &slog.HandlerOptions{AddSource: cfg.AddSource}
	if cfg.Level != nil {
		opts.Level = cfg.Level
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &Logger{Logger: slog.New(handler), redactor: redactor}
}

// WrapLogger adds redaction to an existing slog logger.
func WrapLogger(logger *slog.Logger, redactor *Redactor) *Logger {
	return &Logger{Logger: logger, redactor: redactor}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// WithRequestID returns a logger tagged with the request id in ctx.
func (l *Logger) WithRequestID(ctx context.Context) *Logger {
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		return l
	}
	return &Logger{Logger: l.Logger.With("request_id", requestID), redactor: l.redactor}
}

// RedactedError logs at ERROR with string and error arguments redacted.
func (l *Logger) RedactedError(msg string, args ...any) {
	l.Logger.Error(l.redact(msg), l.redactArgs(args)...)
}

// RedactedWarn logs at WARN with string and error arguments redacted.
func (l *Logger) RedactedWarn(msg string, args ...any) {
	l.Logger.Warn(l.redact(msg), l.redactArgs(args)...)
}

// RedactedDebug logs at DEBUG with string and error arguments redacted.
func (l *Logger) RedactedDebug(msg string, args ...any) {
	l.Logger.Debug(l.redact(msg), l.redactArgs(args)...)
}

func (l *Logger) redact(s string) string {
	if l.redactor == nil {
		return s
	}
	return l.redactor.Redact(s)
}

func (l *Logger) redactArgs(args []any) []any {
	if l.redactor == nil {
		return args
	}
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			out[i] = l.redactor.Redact(v)
		case error:
			out[i] = l.redactor.Redact(v.Error())
		case map[string]any:
			out[i] = l.redactor.RedactMap(v)
		default:
			out[i] = arg
		}
	}
	return out
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}
