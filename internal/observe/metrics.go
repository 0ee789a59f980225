// Package observe provides application-wide observability primitives: OpenTelemetry
// metrics, distributed tracing, structured logging correlation, and HTTP
// middleware that ties them together.
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/junzi314/minutes"

// Metrics holds every OpenTelemetry metric instrument the pipeline records.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks how long a single pipeline stage took. Use with
	// attribute.String("stage", ...) where stage is one of "acquire",
	// "transcribe", "merge", "generate", "publish".
	StageDuration metric.Float64Histogram

	// TriggersTotal counts incoming triggers. Use with
	// attribute.String("kind", ...) where kind is "panel-edit" or "drive-file".
	TriggersTotal metric.Int64Counter

	// DuplicateTriggersTotal counts triggers discarded because a pipeline for
	// that recording id was already active.
	DuplicateTriggersTotal metric.Int64Counter

	// PipelineOutcomes counts completed pipeline invocations. Use with
	// attribute.String("outcome", ...) ("done" or "failed") and, on failure,
	// attribute.String("stage", ...).
	PipelineOutcomes metric.Int64Counter

	// ActivePipelines tracks the number of pipeline invocations currently
	// in flight.
	ActivePipelines metric.Int64UpDownCounter

	// DriveFilesProcessed counts drive files reaching a terminal outcome,
	// labeled attribute.String("outcome", ...).
	DriveFilesProcessed metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time for the
	// health/metrics servers. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// stageLatencyBuckets defines histogram bucket boundaries (in seconds)
// spanning from sub-second network calls up to multi-minute transcription
// and generation stages.
var stageLatencyBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("minutes.stage.duration",
		metric.WithDescription("Latency of a single pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TriggersTotal, err = m.Int64Counter("minutes.triggers.total",
		metric.WithDescription("Total triggers received, by kind."),
	); err != nil {
		return nil, err
	}
	if met.DuplicateTriggersTotal, err = m.Int64Counter("minutes.triggers.duplicate",
		metric.WithDescription("Total triggers discarded as duplicates of an already-active recording id."),
	); err != nil {
		return nil, err
	}
	if met.PipelineOutcomes, err = m.Int64Counter("minutes.pipeline.outcomes",
		metric.WithDescription("Total pipeline invocations, by outcome and (on failure) stage."),
	); err != nil {
		return nil, err
	}
	if met.ActivePipelines, err = m.Int64UpDownCounter("minutes.pipelines.active",
		metric.WithDescription("Number of pipeline invocations currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.DriveFilesProcessed, err = m.Int64Counter("minutes.drive.files_processed",
		metric.WithDescription("Total drive files reaching a terminal outcome, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("minutes.http.request.duration",
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

// RecordStageDuration records a pipeline stage's duration in seconds.
func (m *Metrics) RecordStageDuration(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordTrigger increments the trigger counter for the given kind.
func (m *Metrics) RecordTrigger(ctx context.Context, kind string) {
	m.TriggersTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDuplicateTrigger increments the duplicate-trigger counter.
func (m *Metrics) RecordDuplicateTrigger(ctx context.Context) {
	m.DuplicateTriggersTotal.Add(ctx, 1)
}

// RecordPipelineOutcome increments the outcome counter. stage is ignored
// (pass "") when outcome is "done".
func (m *Metrics) RecordPipelineOutcome(ctx context.Context, outcome, stage string) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if stage != "" {
		attrs = append(attrs, attribute.String("stage", stage))
	}
	m.PipelineOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}
