package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

// newTestMux returns a mux wrapped by the middleware, with metrics and spans
// recorded in memory.
func newTestMux(t *testing.T) (http.Handler, func() metricdata.ResourceMetrics, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)
	exp := useTracerProvider(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /ingestAudio", func(w http.ResponseWriter, r *http.Request) {
		if traceIDFrom(r.Context()) == "" {
			t.Error("handler context carries no trace")
		}
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("GET /v1/session", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return Middleware(m)(mux), func() metricdata.ResourceMetrics { return collect(t, reader) }, exp
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_NamesSpansByRoute(t *testing.T) {
	h, _, exp := newTestMux(t)

	rec := serve(h, http.MethodPost, "/ingestAudio", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "POST /ingestAudio" {
		t.Errorf("span name = %q, want the mux pattern", s.Name)
	}
	attrs := attribute.NewSet(s.Attributes...)
	if v, _ := attrs.Value("http.route"); v.AsString() != "POST /ingestAudio" {
		t.Errorf("http.route = %q", v.AsString())
	}
	if v, _ := attrs.Value("http.response.status_code"); v.AsInt64() != 400 {
		t.Errorf("http.response.status_code = %d, want 400", v.AsInt64())
	}
}

func TestMiddleware_CorrelationHeader(t *testing.T) {
	h, _, _ := newTestMux(t)

	t.Run("new trace", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/healthz", nil)
		if got := rec.Header().Get(CorrelationHeader); len(got) != 32 {
			t.Errorf("%s = %q, want a 32 character trace ID", CorrelationHeader, got)
		}
	})

	t.Run("continued trace", func(t *testing.T) {
		header := http.Header{"Traceparent": {"00-" + incomingTraceID + "-00f067aa0ba902b7-01"}}
		rec := serve(h, http.MethodGet, "/healthz", header)
		if got := rec.Header().Get(CorrelationHeader); got != incomingTraceID {
			t.Errorf("%s = %q, want %q", CorrelationHeader, got, incomingTraceID)
		}
		if got := rec.Header().Get("Traceparent"); got == "" {
			t.Error("response carries no traceparent")
		}
	})
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	h, collectMetrics, _ := newTestMux(t)

	serve(h, http.MethodGet, "/healthz", nil)
	serve(h, http.MethodGet, "/healthz", nil)
	serve(h, http.MethodGet, "/v1/session", nil)
	serve(h, http.MethodGet, "/no/such/path/42", nil)

	met := findMetric(collectMetrics(), "memento.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}

	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		route, _ := dp.Attributes.Value("route")
		status, _ := dp.Attributes.Value("status")
		counts[route.AsString()+" "+status.AsString()] += dp.Count
	}
	want := map[string]uint64{
		"GET /healthz 200":    2,
		"GET /v1/session 500": 1,
		"unmatched 404":       1,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("samples[%q] = %d, want %d (all: %v)", k, counts[k], n, counts)
		}
	}
}

func TestMiddleware_HijackUnsupported(t *testing.T) {
	m, _ := newTestMetrics(t)

	var hijackErr error
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("wrapped writer does not implement http.Hijacker")
			return
		}
		_, _, hijackErr = hj.Hijack()
	}))
	serve(h, http.MethodGet, "/v1/session", nil)

	if hijackErr == nil {
		t.Error("Hijack on a recorder: expected error, got nil")
	}
}

func TestTraceIDFrom_Empty(t *testing.T) {
	if got := traceIDFrom(context.Background()); got != "" {
		t.Errorf("traceIDFrom(background) = %q, want empty", got)
	}
}
