package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies memento spans in the global tracer provider.
const instrumentationName = "github.com/MrWong99/memento"

// Tracer returns the memento tracer. It follows the global provider, so spans
// started before [InitProvider] are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan is Tracer().Start. End the returned span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a valid span.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return slog.Default()
	}
	return slog.Default().With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
