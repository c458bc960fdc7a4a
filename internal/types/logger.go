package types

import (
	"log/slog"
)

// Logger defines the structured logging interface used throughout the
// platform. slog.Logger satisfies Info, Error, and Warn directly, but its
// With returns *slog.Logger rather than Logger, so production code wraps it
// via NewSlogLogger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an *slog.Logger so it satisfies Logger.
// A nil argument wraps slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{logger: l}
}

func (a *slogLogger) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogLogger) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogLogger) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

func (a *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: a.logger.With(args...)}
}

// NopLogger returns a Logger that discards everything. Intended for tests
// and optional dependencies.
func NopLogger() Logger {
	return &slogLogger{logger: slog.New(slog.DiscardHandler)}
}

// Compile-time assertion that slogLogger implements Logger.
var _ Logger = (*slogLogger)(nil)
