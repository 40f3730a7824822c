package observability

import (
	"context"
	"sync"

	"derjachat/internal/config"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
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

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// PipelineMetrics counts the degraded branches the chat and quiz pipelines take.
// Instruments come from the global meter provider, so they are no-ops until
// SetupObservability installs a real one.
type PipelineMetrics struct {
	driftDetected     otelmetric.Int64Counter
	rewriteAttempts   otelmetric.Int64Counter
	quizFallbacks     otelmetric.Int64Counter
	groundingDegraded otelmetric.Int64Counter
	generationFailed  otelmetric.Int64Counter
}

var (
	pipelineMetrics     *PipelineMetrics
	pipelineMetricsOnce sync.Once
)

// GetPipelineMetrics returns the process-wide pipeline counters
func GetPipelineMetrics() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = NewPipelineMetrics(otel.Meter(tracerName))
	})
	return pipelineMetrics
}

// NewPipelineMetrics registers the pipeline counters on the given meter
func NewPipelineMetrics(meter otelmetric.Meter) *PipelineMetrics {
	m := &PipelineMetrics{}
	m.driftDetected, _ = meter.Int64Counter("derja.dialect.drift_detected",
		otelmetric.WithDescription("Replies whose script or register drifted away from the dialect"))
	m.rewriteAttempts, _ = meter.Int64Counter("derja.dialect.rewrite_attempts",
		otelmetric.WithDescription("Rewrite calls issued to pull a reply back into the dialect"))
	m.quizFallbacks, _ = meter.Int64Counter("derja.quiz.fallbacks",
		otelmetric.WithDescription("Quiz requests answered with the deterministic fallback quiz"))
	m.groundingDegraded, _ = meter.Int64Counter("derja.grounding.degraded",
		otelmetric.WithDescription("Search or page fetches that failed and were skipped"))
	m.generationFailed, _ = meter.Int64Counter("derja.generation.failed",
		otelmetric.WithDescription("Primary generation calls that failed"))
	return m
}

// DriftDetected records a drift detection and its reason
func (m *PipelineMetrics) DriftDetected(ctx context.Context, reason string) {
	add(ctx, m.driftDetected, attribute.String("reason", reason))
}

// RewriteAttempted records a dialect rewrite call and whether it was accepted
func (m *PipelineMetrics) RewriteAttempted(ctx context.Context, accepted bool) {
	add(ctx, m.rewriteAttempts, attribute.Bool("accepted", accepted))
}

// QuizFallback records a fallback quiz and the pipeline stage that triggered it
func (m *PipelineMetrics) QuizFallback(ctx context.Context, stage string) {
	add(ctx, m.quizFallbacks, attribute.String("stage", stage))
}

// GroundingDegraded records a skipped grounding source ("search", "page")
func (m *PipelineMetrics) GroundingDegraded(ctx context.Context, source string) {
	add(ctx, m.groundingDegraded, attribute.String("source", source))
}

// GenerationFailed records a failed primary generation call
func (m *PipelineMetrics) GenerationFailed(ctx context.Context, mode string) {
	add(ctx, m.generationFailed, attribute.String("mode", mode))
}

func add(ctx context.Context, counter otelmetric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, otelmetric.WithAttributes(attrs...))
}
