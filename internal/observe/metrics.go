// Package observe provides application-wide observability primitives for
// vocadrill: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all vocadrill metrics.
const meterName = "github.com/vocadrill/vocadrill"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per speech stage ---

	// SynthesisDuration tracks local text-to-speech utterance latency, from
	// Speak to the end-of-speech event.
	SynthesisDuration metric.Float64Histogram

	// RecognitionDuration tracks speech recognition latency, from the end of
	// the utterance to the final result.
	RecognitionDuration metric.Float64Histogram

	// RenderDuration tracks prompt-audio rendering latency (the fallback
	// path for languages without a local voice).
	RenderDuration metric.Float64Histogram

	// --- Counters ---

	// MatchAttempts counts judged answers. Use with attribute:
	//   attribute.String("outcome", "matched"|"missed")
	MatchAttempts metric.Int64Counter

	// ItemsMissed counts items the learner gave up on (hint shown).
	ItemsMissed metric.Int64Counter

	// DrillsCompleted counts finished drills.
	DrillsCompleted metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts speech/content provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveDrills tracks the number of live drill sessions.
	ActiveDrills metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech round-trip latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("vocadrill.synthesis.duration",
		metric.WithDescription("Latency of local text-to-speech utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecognitionDuration, err = m.Float64Histogram("vocadrill.recognition.duration",
		metric.WithDescription("Latency of speech recognition per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RenderDuration, err = m.Float64Histogram("vocadrill.render.duration",
		metric.WithDescription("Latency of prompt-audio rendering."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MatchAttempts, err = m.Int64Counter("vocadrill.match.attempts",
		metric.WithDescription("Total judged answers by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ItemsMissed, err = m.Int64Counter("vocadrill.items.missed",
		metric.WithDescription("Total items the learner gave up on."),
	); err != nil {
		return nil, err
	}
	if met.DrillsCompleted, err = m.Int64Counter("vocadrill.drills.completed",
		metric.WithDescription("Total finished drills."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("vocadrill.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDrills, err = m.Int64UpDownCounter("vocadrill.active_drills",
		metric.WithDescription("Number of live drill sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vocadrill.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordMatchAttempt records one judged answer.
func (m *Metrics) RecordMatchAttempt(ctx context.Context, matched bool) {
	outcome := "missed"
	if matched {
		outcome = "matched"
	}
	m.MatchAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordItemMissed records one given-up item.
func (m *Metrics) RecordItemMissed(ctx context.Context) {
	m.ItemsMissed.Add(ctx, 1)
}

// RecordDrillCompleted records one finished drill.
func (m *Metrics) RecordDrillCompleted(ctx context.Context) {
	m.DrillsCompleted.Add(ctx, 1)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
