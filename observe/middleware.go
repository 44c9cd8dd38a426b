package observe

import (
	"context"
	"time"
)

// OpFunc is an instrumented unit of work: a fetch or a remote mutation call.
type OpFunc func(ctx context.Context) (any, error)

// Middleware wraps operations with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NewNoopMiddleware returns a Middleware that records nothing.
func NewNoopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Metrics returns the middleware's metrics recorder.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Run executes fn inside a span and records its duration and outcome.
func (m *Middleware) Run(ctx context.Context, meta OpMeta, fn OpFunc) (any, error) {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	result, err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, meta, duration, err)

	logger := m.logger.WithOp(meta)
	fields := []Field{{Key: "duration_ms", Value: float64(duration.Milliseconds())}}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Error(ctx, string(meta.Kind)+" failed", fields...)
	} else {
		logger.Debug(ctx, string(meta.Kind)+" completed", fields...)
	}

	return result, err
}

// Event records a cache event and logs it at debug level.
func (m *Middleware) Event(ctx context.Context, meta OpMeta, event string) {
	m.metrics.RecordEvent(ctx, meta, event)
	m.logger.WithOp(meta).Debug(ctx, "cache event", Field{Key: "event", Value: event})
}
