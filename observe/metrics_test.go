package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
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

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		return 0
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordOperation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := OpMeta{Kind: OpFetch, Family: "staff", Key: `["staff"]`}

	m.RecordOperation(ctx, meta, 20*time.Millisecond, nil)
	m.RecordOperation(ctx, meta, 30*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumOf(t, rm, "querycache.op.total"); got != 2 {
		t.Errorf("op.total = %d, want 2", got)
	}
	if got := sumOf(t, rm, "querycache.op.errors"); got != 1 {
		t.Errorf("op.errors = %d, want 1", got)
	}

	found := findMetric(rm, "querycache.op.duration_ms")
	if found == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("histogram data points = %+v", hist.DataPoints)
	}
}

func TestMetrics_KeyNotAnAttribute(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordOperation(context.Background(), OpMeta{Kind: OpFetch, Family: "user", Key: `["user",3]`}, 0, nil)

	sum := findMetric(collect(t, reader), "querycache.op.total").Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes
	if _, ok := attrs.Value(attribute.Key("op.key")); ok {
		t.Error("op.key recorded as a metric attribute")
	}
	if v, ok := attrs.Value(attribute.Key("op.family")); !ok || v.AsString() != "user" {
		t.Errorf("op.family = %v", v)
	}
}

func TestMetrics_RecordEvent(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := OpMeta{Kind: OpMutation, Name: "reserve"}

	m.RecordEvent(ctx, meta, EventRollback)
	m.RecordEvent(ctx, meta, EventRollback)
	m.RecordEvent(ctx, meta, EventCoalesced)

	sum := findMetric(collect(t, reader), "querycache.events").Data.(metricdata.Sum[int64])
	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("event"))
		counts[v.AsString()] += dp.Value
	}
	if counts[EventRollback] != 2 || counts[EventCoalesced] != 1 {
		t.Errorf("event counts = %v", counts)
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()
	m.RecordOperation(context.Background(), OpMeta{}, time.Second, errors.New("x"))
	m.RecordEvent(context.Background(), OpMeta{}, EventHit)
}
