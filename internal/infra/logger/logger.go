// Package logger builds the process logger and derives request-scoped loggers
// from a context.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "goshopper-account"

// RequestIDKey is the context key under which the HTTP layer stores the trace id.
type RequestIDKey struct{}

// New builds the logger for env and installs it as the zap global, which
// WithContext derives from. Production logs JSON at info; anything else logs
// coloured console output at debug.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]any{"service": serviceName, "env": env}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// WithContext returns the global logger tagged with the request and span ids
// found on ctx.
func WithContext(ctx context.Context) *zap.Logger {
	log := zap.L()
	if ctx == nil {
		return log
	}

	var fields []zap.Field
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, zap.String("otel_trace_id", sc.TraceID().String()), zap.String("span_id", sc.SpanID().String()))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
