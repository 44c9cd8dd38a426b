package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event names recorded with RecordEvent.
const (
	EventCoalesced = "coalesced"
	EventDiscarded = "discarded"
	EventCanceled  = "canceled"
	EventRollback  = "rollback"
	EventHit       = "hit"
)

// Metrics records operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records a fetch or remote mutation call.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordEvent counts a cache event such as a coalesced fetch or a rollback.
	RecordEvent(ctx context.Context, meta OpMeta, event string)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	eventCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance backed by meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"querycache.op.total",
		metric.WithDescription("Total number of fetches and remote mutation calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"querycache.op.errors",
		metric.WithDescription("Total number of failed fetches and remote mutation calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	eventCount, err := meter.Int64Counter(
		"querycache.events",
		metric.WithDescription("Cache events: coalesced fetches, discarded results, rollbacks"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"querycache.op.duration_ms",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		eventCount:   eventCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordEvent(ctx context.Context, meta OpMeta, event string) {
	attrs := append(meta.attributes(), attribute.String("event", event))
	m.eventCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordEvent(context.Context, OpMeta, string)                   {}
