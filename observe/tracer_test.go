package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOpMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta OpMeta
		want string
	}{
		{OpMeta{Kind: OpFetch, Family: "appointments"}, "querycache.fetch.appointments"},
		{OpMeta{Kind: OpMutation, Family: "appointments", Name: "reserve"}, "querycache.mutation.appointments.reserve"},
		{OpMeta{Kind: OpMutation, Name: "patch-user"}, "querycache.mutation.patch-user"},
		{OpMeta{Kind: OpFetch}, "querycache.fetch"},
	}
	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewTracer(tp.Tracer("test")), rec
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracer_Success(t *testing.T) {
	tracer, rec := newRecordingTracer()
	_, span := tracer.StartSpan(context.Background(), OpMeta{Kind: OpFetch, Family: "user", Key: `["user",3]`})
	tracer.EndSpan(span, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "querycache.fetch.user" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("Status = %v, want Ok", s.Status().Code)
	}
	if v, ok := spanAttr(s, "op.key"); !ok || v.AsString() != `["user",3]` {
		t.Errorf("op.key = %v", v)
	}
	if v, _ := spanAttr(s, "op.error"); v.AsBool() {
		t.Error("op.error = true on success")
	}
}

func TestTracer_Error(t *testing.T) {
	tracer, rec := newRecordingTracer()
	_, span := tracer.StartSpan(context.Background(), OpMeta{Kind: OpMutation, Name: "reserve"})
	tracer.EndSpan(span, errors.New("slot taken"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "slot taken" {
		t.Errorf("Status = %+v", s.Status())
	}
	if v, _ := spanAttr(s, "op.error"); !v.AsBool() {
		t.Error("op.error = false on failure")
	}
	if len(s.Events()) == 0 {
		t.Error("error not recorded as a span event")
	}
}

func TestNoopTracer(t *testing.T) {
	tracer := NewNoopTracer()
	ctx, span := tracer.StartSpan(context.Background(), OpMeta{Kind: OpFetch})
	if ctx == nil || span == nil {
		t.Fatal("noop tracer returned nil")
	}
	tracer.EndSpan(span, errors.New("ignored"))
}
