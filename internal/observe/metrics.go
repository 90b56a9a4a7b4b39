// Package observe provides the observability primitives for deepscout:
// OpenTelemetry metrics with a Prometheus exporter bridge so that metrics can
// be scraped from the standard /metrics endpoint in HTTP mode, plus tracing
// helpers and the HTTP middleware that ties trace IDs to log lines.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all deepscout metrics.
const meterName = "github.com/avezina/deepscout"

// Metrics holds all OpenTelemetry metric instruments for the adapter. The
// underlying OTel types handle their own synchronisation.
type Metrics struct {
	// ResearchDuration tracks end-to-end downstream research call latency.
	ResearchDuration metric.Float64Histogram

	// ToolCalls counts do_deep_research invocations. Use with attribute:
	//   attribute.String("status", ...) — one of ok, validation_error,
	//   rate_limited, internal_error.
	ToolCalls metric.Int64Counter

	// ValidationFailures counts rejected requests by failing field code.
	ValidationFailures metric.Int64Counter

	// RateLimitDenials counts denials by reason.
	RateLimitDenials metric.Int64Counter

	// ProviderErrors counts downstream API failures by kind.
	ProviderErrors metric.Int64Counter

	// TokensConsumed accumulates downstream token usage by accuracy level.
	TokensConsumed metric.Int64Counter

	// InFlight tracks concurrently executing tool invocations.
	InFlight metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request latency in streamable-http
	// mode, labelled by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets covers deep-research call latencies, which run from a few
// seconds to several minutes.
var latencyBuckets = []float64{
	1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ResearchDuration, err = m.Float64Histogram("deepscout.research.duration",
		metric.WithDescription("Latency of downstream research calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("deepscout.tool.calls",
		metric.WithDescription("Total do_deep_research invocations by status."),
	); err != nil {
		return nil, err
	}
	if met.ValidationFailures, err = m.Int64Counter("deepscout.validation.failures",
		metric.WithDescription("Total requests rejected by validation, by error code."),
	); err != nil {
		return nil, err
	}
	if met.RateLimitDenials, err = m.Int64Counter("deepscout.ratelimit.denials",
		metric.WithDescription("Total rate limit denials by reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("deepscout.provider.errors",
		metric.WithDescription("Total downstream API failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.TokensConsumed, err = m.Int64Counter("deepscout.tokens.consumed",
		metric.WithDescription("Downstream tokens consumed by accuracy level."),
	); err != nil {
		return nil, err
	}
	if met.InFlight, err = m.Int64UpDownCounter("deepscout.tool.in_flight",
		metric.WithDescription("Concurrently executing tool invocations."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("deepscout.http.request.duration",
		metric.WithDescription("Latency of HTTP requests in streamable-http mode."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records one tool invocation with its terminal status.
func (m *Metrics) RecordToolCall(ctx context.Context, status string) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordValidationFailure records one validation rejection by error code.
func (m *Metrics) RecordValidationFailure(ctx context.Context, code string) {
	m.ValidationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordDenial records one rate-limit denial by reason.
func (m *Metrics) RecordDenial(ctx context.Context, reason string) {
	m.RateLimitDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordProviderError records one downstream failure by kind.
func (m *Metrics) RecordProviderError(ctx context.Context, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTokens accumulates downstream token usage for an accuracy level.
func (m *Metrics) RecordTokens(ctx context.Context, level string, tokens int64) {
	m.TokensConsumed.Add(ctx, tokens, metric.WithAttributes(attribute.String("accuracy_level", level)))
}
