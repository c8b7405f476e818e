package observability

import (
	"context"
	"time"

	"safereport/internal/config"
	contextutils "safereport/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Set up exporter
	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	// Set up meter provider
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// Oracle call outcomes recorded on safereport.oracle.requests
const (
	OracleOutcomeOK       = "ok"
	OracleOutcomeSpam     = "spam"
	OracleOutcomeFallback = "fallback"
)

// ReportMetrics holds the application instruments for intake and scoring.
// Instruments come from the global meter provider, so they are no-ops until InitMetrics
// has been installed with otel.SetMeterProvider.
type ReportMetrics struct {
	submitted      otelmetric.Int64Counter
	oracleRequests otelmetric.Int64Counter
	oracleDuration otelmetric.Float64Histogram
	statusChanges  otelmetric.Int64Counter
}

// NewReportMetrics registers the report instruments on the global meter
func NewReportMetrics() *ReportMetrics {
	meter := otel.Meter("safereport")

	m := &ReportMetrics{}
	// Registration only fails on invalid names; the instruments fall back to no-ops
	m.submitted, _ = meter.Int64Counter("safereport.reports.submitted",
		otelmetric.WithDescription("Reports accepted by intake"))
	m.oracleRequests, _ = meter.Int64Counter("safereport.oracle.requests",
		otelmetric.WithDescription("Scoring oracle calls by outcome"))
	m.oracleDuration, _ = meter.Float64Histogram("safereport.oracle.duration",
		otelmetric.WithDescription("Scoring oracle call latency"),
		otelmetric.WithUnit("s"))
	m.statusChanges, _ = meter.Int64Counter("safereport.reports.status_changes",
		otelmetric.WithDescription("Report status transitions by target status"))
	return m
}

// RecordSubmission counts an accepted report
func (m *ReportMetrics) RecordSubmission(ctx context.Context, incidentType string) {
	if m == nil || m.submitted == nil {
		return
	}
	m.submitted.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("incident_type", incidentType)))
}

// RecordOracleCall records one scoring attempt and how long it took
func (m *ReportMetrics) RecordOracleCall(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil || m.oracleRequests == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	m.oracleRequests.Add(ctx, 1, attrs)
	m.oracleDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordStatusChange counts a committed status transition
func (m *ReportMetrics) RecordStatusChange(ctx context.Context, to string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", to)))
}
