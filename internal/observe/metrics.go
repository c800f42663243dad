// Package observe provides application-wide observability primitives for
// memento: OpenTelemetry metrics, distributed tracing, trace-aware structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all memento metrics.
const meterName = "github.com/MrWong99/memento"

// Capture outcomes recorded by [Metrics.RecordCapture].
const (
	OutcomeSaved       = "saved"
	OutcomeEmpty       = "empty"
	OutcomeTooShort    = "too_short"
	OutcomeFailed      = "failed"
	OutcomeSinkPartial = "sink_partial"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// SummarizerDuration tracks a whole Summarize call, fallback and repair
	// included.
	SummarizerDuration metric.Float64Histogram

	// ProviderDuration tracks single model calls. Attribute: provider.
	ProviderDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts model calls. Attributes: provider, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed model calls and unusable output.
	// Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// Captures counts finished capture cycles. Attribute: outcome.
	Captures metric.Int64Counter

	// SinkWrites counts result deliveries. Attributes: sink, status.
	SinkWrites metric.Int64Counter

	// IngestedItems counts items stored by the ingestion backend.
	// Attribute: item_type.
	IngestedItems metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks connected wearable sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route, status. Upgraded wearable sessions are recorded when
	// they end, so their samples measure the session length.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// hosted model calls.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SummarizerDuration, err = m.Float64Histogram("memento.summarizer.duration",
		metric.WithDescription("Latency of a full summarize call including retries, fallback and repair."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("memento.provider.duration",
		metric.WithDescription("Latency of a single model call by provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("memento.provider.requests",
		metric.WithDescription("Total model calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("memento.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Captures, err = m.Int64Counter("memento.captures",
		metric.WithDescription("Finished capture cycles by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SinkWrites, err = m.Int64Counter("memento.sink.writes",
		metric.WithDescription("Result deliveries by sink and status."),
	); err != nil {
		return nil, err
	}
	if met.IngestedItems, err = m.Int64Counter("memento.ingest.items",
		metric.WithDescription("Items stored by the ingestion backend by item type."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("memento.active_sessions",
		metric.WithDescription("Number of connected wearable sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("memento.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
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

// RecordProviderRequest records one model call and its latency.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string, d time.Duration) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.ProviderDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordProviderError records a provider error of the given kind.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCapture records one finished capture cycle.
func (m *Metrics) RecordCapture(ctx context.Context, outcome string) {
	m.Captures.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSinkWrite records one delivery attempt to a result sink.
func (m *Metrics) RecordSinkWrite(ctx context.Context, sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SinkWrites.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("sink", sink),
			attribute.String("status", status),
		),
	)
}

// RecordIngest records one item stored by the ingestion backend.
func (m *Metrics) RecordIngest(ctx context.Context, itemType string) {
	m.IngestedItems.Add(ctx, 1, metric.WithAttributes(attribute.String("item_type", itemType)))
}
