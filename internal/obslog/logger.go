// Package obslog wraps go.uber.org/zap behind a small Logger interface,
// matching the shape itsneelabh-gomind's pkg/logger exposes (Debug/Info/
// Warn/Error with a fields map, plus a scoped With). zap itself is
// grounded on theRebelliousNerd-codenerd, which depends on it directly
// for its own structured logging.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface every component in this module takes,
// rather than a concrete *zap.Logger, so tests can substitute a no-op.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	With(fields map[string]any) Logger
}

type zapLogger struct {
	inner *zap.Logger
}

// New builds a production-style JSON logger at the given level name
// ("debug", "info", "warn", "error").
func New(levelName string) Logger {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(levelName))
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return &zapLogger{inner: logger}
}

// Noop returns a Logger that discards everything, used by tests and
// library callers that don't want suite logging on stdout.
func Noop() Logger {
	return &zapLogger{inner: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields map[string]any) { l.inner.Debug(msg, toFields(fields)...) }
func (l *zapLogger) Info(msg string, fields map[string]any)  { l.inner.Info(msg, toFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields map[string]any)  { l.inner.Warn(msg, toFields(fields)...) }
func (l *zapLogger) Error(msg string, fields map[string]any) { l.inner.Error(msg, toFields(fields)...) }

func (l *zapLogger) With(fields map[string]any) Logger {
	return &zapLogger{inner: l.inner.With(toFields(fields)...)}
}

func toFields(fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
