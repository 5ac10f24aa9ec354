package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	passIDKey    contextKey = "passID"
)

// LevelTrace is below DEBUG and only enabled explicitly
const LevelTrace = slog.LevelDebug - 4

var logger *slog.Logger

// Until Setup runs, INFO and above go to stderr in the compact format
func init() {
	handler := NewCompactHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger = slog.New(handler)
}

// Options configures the process-wide logger
type Options struct {
	Level slog.Level
	JSON  bool

	// File, when set, receives a copy of every record through a rotating writer
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup replaces the process-wide logger. The returned closer flushes the log file, if any.
func Setup(opts Options) io.Closer {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stderr, rotating)
		closer = rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		logger = slog.New(slog.NewJSONHandler(out, handlerOpts))
	} else {
		// Colors only when the console is the sole destination
		colored := opts.File == "" && !color.NoColor
		logger = slog.New(NewCompactHandler(out, handlerOpts).WithColor(colored))
	}
	return closer
}

// ParseLevel maps a verbosity name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewPassID returns a fresh identifier for one synchronization pass
func NewPassID() string {
	return uuid.New().String()
}

// WithPassID tags the context with a sync pass ID
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey, passID)
}

// GetPassID retrieves the sync pass ID from context
func GetPassID(ctx context.Context) string {
	if passID, ok := ctx.Value(passIDKey).(string); ok {
		return passID
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// contextAttrs prepends the request and pass IDs carried by ctx
func contextAttrs(ctx context.Context, args []any) []any {
	if passID := GetPassID(ctx); passID != "" {
		args = append([]any{"passID", passID}, args...)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		args = append([]any{"requestID", requestID}, args...)
	}
	return args
}

func logContext(ctx context.Context, level slog.Level, msg string, args []any) {
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, contextAttrs(ctx, args)...)
}

// Trace is for per-event detail: raw filesystem events, bazel command lines
func Trace(msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

func TraceContext(ctx context.Context, msg string, args ...any) {
	logContext(ctx, LevelTrace, msg, args)
}

// Debug is for the inner steps of a pass
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	logContext(ctx, slog.LevelDebug, msg, args)
}

// Info is for pass outcomes and lifecycle events a user follows on the console
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	logContext(ctx, slog.LevelInfo, msg, args)
}

// Warn is for recoverable failures: a discarded store payload, a dropped event
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	logContext(ctx, slog.LevelWarn, msg, args)
}

// Error is for failed passes and requests
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	logContext(ctx, slog.LevelError, msg, args)
}
