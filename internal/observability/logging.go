// Package observability provides OpenTelemetry tracing, metrics, and structured logging
// with trace correlation for the report triage service.
package observability

import (
	"context"
	"os"

	"safereport/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap so every call takes a context and a field map. Entries
// logged inside a span carry trace_id and span_id.
type Logger struct {
	*zap.Logger
}

// NewLogger builds the process logger. A nil config or disabled logging gives
// a no-op logger so callers never need a nil check.
func NewLogger(cfg *config.OpenTelemetryConfig) *Logger {
	if cfg == nil || !cfg.EnableLogging {
		return &Logger{Logger: zap.NewNop()}
	}

	level := ParseLevel(cfg.LogLevel)
	base := buildStdoutLogger(level)

	if cfg.Endpoint == "" {
		base.Info("OTLP log export disabled", zap.String("level", level.String()))
		return &Logger{Logger: base}
	}

	otelCore, err := newOTLPCore(cfg)
	if err != nil {
		// Stdout logging keeps working when the collector is unreachable
		base.Error("Failed to set up OTLP log export", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: base}
	}

	tee := zap.New(zapcore.NewTee(base.Core(), otelCore))
	tee.Info("OTLP log export configured", zap.String("endpoint", cfg.Endpoint), zap.String("level", level.String()))
	return &Logger{Logger: tee}
}

// ParseLevel maps a configured level name onto a zap level, defaulting to info
func ParseLevel(name string) zapcore.Level {
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zap.InfoLevel
	}
	return level
}

func buildStdoutLogger(level zapcore.Level) *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	if os.Getenv("ENV") == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return zap.NewExample()
	}
	return zapLogger
}

func newOTLPCore(cfg *config.OpenTelemetryConfig) (zapcore.Core, error) {
	res, err := serviceResource(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(cfg.Endpoint),
		otlploggrpc.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)
	return otelzap.NewCore(scopeName(cfg), otelzap.WithLoggerProvider(provider)), nil
}

func scopeName(cfg *config.OpenTelemetryConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return "safereport"
}

// Debug logs at debug level
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(ctx, zap.DebugLevel, msg, mergeFields(fields...))
}

// Info logs at info level
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(ctx, zap.InfoLevel, msg, mergeFields(fields...))
}

// Warn logs at warn level
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(ctx, zap.WarnLevel, msg, mergeFields(fields...))
}

// Error logs at error level with err recorded under the "error" key
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	merged := mergeFields(fields...)
	if err != nil {
		merged["error"] = err.Error()
	}
	l.emit(ctx, zap.ErrorLevel, msg, merged)
}

func (l *Logger) emit(ctx context.Context, level zapcore.Level, msg string, fields map[string]interface{}) {
	ce := l.Logger.Check(level, msg)
	if ce == nil {
		return
	}

	zapFields := make([]zap.Field, 0, len(fields)+2)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		zapFields = append(zapFields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	ce.Write(zapFields...)
}

// mergeFields always returns a fresh map so callers' maps are never mutated
func mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			merged[k] = v
		}
	}
	return merged
}
