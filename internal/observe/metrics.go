// Package observe provides application-wide observability primitives for
// audioflow: OpenTelemetry metrics, tracing, and trace-aware structured
// logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is set up by [InitProvider], and [WriteTextfile] dumps the
// gathered metrics in the Prometheus text format after a batch run. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// meterName is the instrumentation scope name used for all audioflow metrics.
const meterName = "github.com/MrWong99/audioflow"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageRuns counts finished stage runs. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("outcome", ...)
	StageRuns metric.Int64Counter

	// StageDuration tracks the time a stage spent computing its outputs.
	// Skipped runs are not recorded.
	StageDuration metric.Float64Histogram

	// StageFailures counts stage failures. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("kind", ...)
	StageFailures metric.Int64Counter

	// ArtifactsEmitted counts artifacts handed downstream. Use with attributes:
	//   attribute.String("stage", ...), attribute.Bool("leaf", ...)
	ArtifactsEmitted metric.Int64Counter

	// InputsProcessed counts top-level inputs. Use with attribute:
	//   attribute.String("status", "ok"|"failed")
	InputsProcessed metric.Int64Counter
}

var _ pipeline.Observer = (*Metrics)(nil)

// durationBuckets defines histogram bucket boundaries (in seconds) for
// external tool runs, from short transcodes to long recognizer passes.
var durationBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageRuns, err = m.Int64Counter("audioflow.stage.runs",
		metric.WithDescription("Stage runs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("audioflow.stage.duration",
		metric.WithDescription("Time spent computing stage outputs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageFailures, err = m.Int64Counter("audioflow.stage.failures",
		metric.WithDescription("Stage failures by error kind."),
	); err != nil {
		return nil, err
	}
	if met.ArtifactsEmitted, err = m.Int64Counter("audioflow.artifacts.emitted",
		metric.WithDescription("Artifacts handed to downstream stages or out of the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.InputsProcessed, err = m.Int64Counter("audioflow.inputs.processed",
		metric.WithDescription("Top-level inputs fed through the pipeline."),
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
// fails.
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

// Observe implements [pipeline.Observer] by recording ev.
func (m *Metrics) Observe(ctx context.Context, ev pipeline.Event) {
	stage := attribute.String("stage", ev.Stage)
	switch ev.Outcome {
	case pipeline.OutcomeDone:
		m.StageRuns.Add(ctx, 1, metric.WithAttributes(stage, attribute.String("outcome", string(ev.Outcome))))
		m.StageDuration.Record(ctx, ev.Elapsed.Seconds(), metric.WithAttributes(stage))
	case pipeline.OutcomeSkipped:
		m.StageRuns.Add(ctx, 1, metric.WithAttributes(stage, attribute.String("outcome", string(ev.Outcome))))
	case pipeline.OutcomeFailed:
		m.StageRuns.Add(ctx, 1, metric.WithAttributes(stage, attribute.String("outcome", string(ev.Outcome))))
		kind := "unknown"
		if ev.Failure != nil {
			kind = ev.Failure.Kind()
		}
		m.StageFailures.Add(ctx, 1, metric.WithAttributes(stage, attribute.String("kind", kind)))
	case pipeline.OutcomeEmitted:
		m.ArtifactsEmitted.Add(ctx, 1, metric.WithAttributes(stage, attribute.Bool("leaf", ev.Leaf)))
	}
}

// RecordInput counts one finished top-level input.
func (m *Metrics) RecordInput(ctx context.Context, res pipeline.Result) {
	status := "ok"
	if !res.OK() {
		status = "failed"
	}
	m.InputsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
