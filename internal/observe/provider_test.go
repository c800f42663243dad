package observe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

func TestInitProvider_ExportsToRegistry(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	reg := prometheus.NewRegistry()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceName:    "memento-test",
		ServiceVersion: "v0.0.0",
		Registry:       reg,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordCapture(context.Background(), OutcomeSaved)

	_, span := StartSpan(context.Background(), "capture.finish")
	if !span.SpanContext().IsValid() {
		t.Error("global tracer provider does not record spans")
	}
	span.End()

	rec := httptest.NewRecorder()
	MetricsHandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(string(body), "memento_captures") {
		t.Errorf("scrape does not contain the captures counter:\n%s", body)
	}
	if !strings.Contains(string(body), `service_name="memento-test"`) {
		t.Errorf("scrape does not carry the service name:\n%s", body)
	}
}
