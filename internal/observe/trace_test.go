package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// useTracerProvider installs an in-memory tracer provider as the global one
// for the duration of the test.
func useTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs redirects the default logger to a JSON buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	exp := useTracerProvider(t)

	ctx, finish := StartSpan(context.Background(), "capture.finish",
		trace.WithAttributes(attribute.String("reason", "stop-phrase")))
	_, call := StartSpan(ctx, "summary.provider_call")
	call.End()
	finish.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	child, parent := spans[0], spans[1]
	if parent.Name != "capture.finish" || child.Name != "summary.provider_call" {
		t.Fatalf("span names = %q, %q", child.Name, parent.Name)
	}
	if child.Parent.SpanID() != parent.SpanContext.SpanID() {
		t.Error("provider call span is not a child of the finish span")
	}
	if child.SpanContext.TraceID() != parent.SpanContext.TraceID() {
		t.Error("spans do not share a trace")
	}
	var reason string
	for _, kv := range parent.Attributes {
		if kv.Key == "reason" {
			reason = kv.Value.AsString()
		}
	}
	if reason != "stop-phrase" {
		t.Errorf("reason attribute = %q, want stop-phrase", reason)
	}
}

func TestLogger(t *testing.T) {
	useTracerProvider(t)
	buf := captureLogs(t)

	ctx, span := StartSpan(context.Background(), "glasses.session")
	Logger(ctx).Info("with span", "session_id", "s-1")
	span.End()
	Logger(context.Background()).Info("without span")

	dec := json.NewDecoder(buf)
	var withSpan, withoutSpan map[string]any
	if err := dec.Decode(&withSpan); err != nil {
		t.Fatalf("decode first record: %v", err)
	}
	if err := dec.Decode(&withoutSpan); err != nil {
		t.Fatalf("decode second record: %v", err)
	}

	if got := withSpan["trace_id"]; got != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v, want %s", got, span.SpanContext().TraceID())
	}
	if got := withSpan["span_id"]; got != span.SpanContext().SpanID().String() {
		t.Errorf("span_id = %v, want %s", got, span.SpanContext().SpanID())
	}
	if withSpan["session_id"] != "s-1" {
		t.Errorf("session_id = %v", withSpan["session_id"])
	}
	if _, ok := withoutSpan["trace_id"]; ok {
		t.Errorf("record without span has trace_id: %v", withoutSpan)
	}
}
