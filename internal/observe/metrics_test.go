package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue returns the value of the data point of a sum metric whose
// attributes contain every attribute in want.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			if v, ok := dp.Attributes.Value(kv.Key); !ok || v.Emit() != kv.Value.Emit() {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestObserve(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	fail := &pipeline.Failure{Stage: "asr", Input: "a.wav", Err: pipeline.ErrParse}
	for _, ev := range []pipeline.Event{
		{Stage: "decode", Outcome: pipeline.OutcomeStarted},
		{Stage: "decode", Outcome: pipeline.OutcomeDone, Elapsed: 1500 * time.Millisecond},
		{Stage: "decode", Outcome: pipeline.OutcomeEmitted},
		{Stage: "decode", Outcome: pipeline.OutcomeSkipped},
		{Stage: "asr", Outcome: pipeline.OutcomeFailed, Failure: fail},
		{Stage: "asr", Outcome: pipeline.OutcomeEmitted, Leaf: true},
	} {
		m.Observe(ctx, ev)
	}

	rm := collect(t, reader)
	stage := func(s string) attribute.KeyValue { return attribute.String("stage", s) }
	outcome := func(s string) attribute.KeyValue { return attribute.String("outcome", s) }

	tests := []struct {
		name   string
		metric string
		attrs  []attribute.KeyValue
		want   int64
	}{
		{"decode done", "audioflow.stage.runs", []attribute.KeyValue{stage("decode"), outcome("done")}, 1},
		{"decode skipped", "audioflow.stage.runs", []attribute.KeyValue{stage("decode"), outcome("skipped")}, 1},
		{"started is not a run", "audioflow.stage.runs", []attribute.KeyValue{outcome("started")}, 0},
		{"asr failed", "audioflow.stage.runs", []attribute.KeyValue{stage("asr"), outcome("failed")}, 1},
		{"parse failure", "audioflow.stage.failures", []attribute.KeyValue{stage("asr"), attribute.String("kind", "parse")}, 1},
		{"intermediate artifact", "audioflow.artifacts.emitted", []attribute.KeyValue{attribute.Bool("leaf", false)}, 1},
		{"leaf artifact", "audioflow.artifacts.emitted", []attribute.KeyValue{stage("asr"), attribute.Bool("leaf", true)}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := counterValue(t, rm, tc.metric, tc.attrs...); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}

	met := findMetric(rm, "audioflow.stage.duration")
	if met == nil {
		t.Fatal("duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration metric is not a histogram")
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 || hist.DataPoints[0].Sum != 1.5 {
		t.Errorf("unexpected duration data points: %+v", hist.DataPoints)
	}
}

func TestRecordInput(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInput(ctx, pipeline.Result{Input: "a.mp3"})
	m.RecordInput(ctx, pipeline.Result{Input: "b.mp3"})
	m.RecordInput(ctx, pipeline.Result{Input: "c.mp3", Failures: []*pipeline.Failure{{Stage: "decode", Err: pipeline.ErrToolFailed}}})

	rm := collect(t, reader)
	if got := counterValue(t, rm, "audioflow.inputs.processed", attribute.String("status", "ok")); got != 2 {
		t.Errorf("ok inputs: got %d, want 2", got)
	}
	if got := counterValue(t, rm, "audioflow.inputs.processed", attribute.String("status", "failed")); got != 1 {
		t.Errorf("failed inputs: got %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
