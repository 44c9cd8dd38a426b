package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpKind classifies a cache operation.
type OpKind string

const (
	OpFetch    OpKind = "fetch"
	OpMutation OpKind = "mutation"
)

// OpMeta describes a cache operation for telemetry purposes.
type OpMeta struct {
	Kind   OpKind
	Family string // resource family, the first key component
	Key    string // canonical key, empty for mutations
	Name   string // mutation name (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: querycache.<kind>.<family>[.<name>]
func (m OpMeta) SpanName() string {
	name := "querycache." + string(m.Kind)
	if m.Family != "" {
		name += "." + m.Family
	}
	if m.Name != "" {
		name += "." + m.Name
	}
	return name
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("op.kind", string(m.Kind))}
	if m.Family != "" {
		attrs = append(attrs, attribute.String("op.family", m.Family))
	}
	if m.Name != "" {
		attrs = append(attrs, attribute.String("op.name", m.Name))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with operation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span named after meta.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a span with the operation metadata as attributes.
// The key is recorded on the span but kept out of metric attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("op.error", false))
	if meta.Key != "" {
		attrs = append(attrs, attribute.String("op.key", meta.Key))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("op.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a tracer that records nothing.
func NewNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
