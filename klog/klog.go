// Package klog provides structured logging for the rtos-go kernel.
//
// This package wraps log/slog for structured, leveled logging and
// integrates with context.Context for request-scoped (task-scoped)
// loggers. All kernel callback sites (hooks, observers, the panic
// handler) log through here rather than fmt.Print, so output is
// consistently attributable and level-filterable.
package klog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

type ctxKey struct{}

var (
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex
)

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Config holds the logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level slog.Level
	// Format is the output format ("text" or "json").
	Format string
	// Output is the log output destination.
	Output io.Writer
	// AddSource adds source file information to log entries.
	AddSource bool
}

// NewLogger creates a new structured logger with the given configuration.
func NewLogger(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

// SetDefault sets the default global logger.
func SetDefault(logger *slog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// Default returns the default global logger.
func Default() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// WithTask returns a logger with task context.
func WithTask(logger *slog.Logger, taskID int) *slog.Logger {
	return logger.With(slog.Int("task_id", taskID))
}

// WithScheduler returns a logger with scheduler context.
func WithScheduler(logger *slog.Logger, id int) *slog.Logger {
	return logger.With(slog.Int("scheduler_id", id))
}

// WithPriority returns a logger with priority context.
func WithPriority(logger *slog.Logger, priority int) *slog.Logger {
	return logger.With(slog.Int("priority", priority))
}

// WithOperation returns a logger with operation context.
func WithOperation(logger *slog.Logger, op string) *slog.Logger {
	return logger.With(slog.String("operation", op))
}

// ContextWithLogger returns a new context with the logger attached.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retrieves the logger from context.
// If no logger is found, returns the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return Default()
}

// ParseLevel parses a log level string and returns the corresponding slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo for invalid values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Info logs an info message using the default logger.
func Info(msg string, args ...any) { Default().Info(msg, args...) }

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) { Default().Warn(msg, args...) }

// Error logs an error message using the default logger.
func Error(msg string, args ...any) { Default().Error(msg, args...) }

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
