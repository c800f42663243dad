package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/memento/internal/signature"
	"github.com/MrWong99/memento/internal/sink"
	"github.com/MrWong99/memento/internal/summary"
)

// memStore is an in-memory [Store] with the same merge semantics as
// [PostgresStore].
type memStore struct {
	mu      sync.Mutex
	items   map[string]Item
	saveErr error
}

func newMemStore() *memStore { return &memStore{items: make(map[string]Item)} }

func (m *memStore) Save(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	key := it.SessionID + "/" + it.ItemID
	if prev, ok := m.items[key]; ok {
		for k, v := range it.Data {
			prev.Data[k] = v
		}
		it.Data = prev.Data
	}
	m.items[key] = it
	return nil
}

func (m *memStore) Item(_ context.Context, sessionID, itemID string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[sessionID+"/"+itemID]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (m *memStore) Ping(context.Context) error { return nil }

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestHandler(t *testing.T, store Store, opts ...Option) http.Handler {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	h, err := NewHandler(store, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func post(t *testing.T, h http.Handler, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec.Code, out
}

const audioBody = `{
	"uid": "target-7",
	"sessionId": "s-1",
	"timestamp": "2026-03-04T05:06:07Z",
	"location": "Berlin",
	"summary": "Dana Lee works at Acme.",
	"transcript": "My name is Dana Lee",
	"skills": ["Go", "Kubernetes"],
	"nextSteps": "",
	"confidence": 87,
	"contactInfo": "dana@example.com"
}`

func TestIngestAudio_Stores(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	h := newTestHandler(t, store)

	code, out := post(t, h, "/ingestAudio", audioBody)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, out)
	}
	wantID := "1772600767000"
	if out["ok"] != true || out["itemId"] != wantID {
		t.Errorf("response = %v, want ok with itemId %s", out, wantID)
	}

	it, err := store.Item(context.Background(), "s-1", wantID)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if it.ItemType != ItemTypeAudioMeta || it.UID != "target-7" {
		t.Errorf("item = %+v", it)
	}
	if _, ok := it.Data["nextSteps"]; ok {
		t.Error("empty nextSteps should not be stored")
	}
	if it.Data["confidence"] != json.Number("87") {
		t.Errorf("confidence = %#v", it.Data["confidence"])
	}
	if it.Data["summary"] != "Dana Lee works at Acme." {
		t.Errorf("summary = %v", it.Data["summary"])
	}
}

func TestIngestAudio_FromRemoteSink(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	srv := httptest.NewServer(newTestHandler(t, store, WithSecret("s3cret")))
	defer srv.Close()

	remote, err := sink.NewRemote(srv.URL+"/ingestAudio", sink.WithSecret("s3cret"))
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	// Nothing in the conversation names a place and the device sent no
	// position.
	ev := sink.Event{
		ID:        "ev-1",
		Timestamp: fixedNow,
		UserID:    "u-1",
		SessionID: "s-1",
		Summary: summary.Record{
			Info:    "Dana Lee works at Acme on the robotics team.",
			Contact: "dana@acme.io",
			Conf:    0.9,
		},
		Transcript: "My name is Dana Lee and I work at Acme on the robotics team",
	}
	if err := remote.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	it, err := store.Item(context.Background(), "s-1", "1772600767000")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if it.Data["location"] != sink.UnknownLocation {
		t.Errorf("location = %v, want %q", it.Data["location"], sink.UnknownLocation)
	}
	if it.Data["summary"] != ev.Summary.Info {
		t.Errorf("summary = %v", it.Data["summary"])
	}
	if it.Data["confidence"] != json.Number("90") {
		t.Errorf("confidence = %#v, want 90", it.Data["confidence"])
	}

	// An empty summary still reaches storage.
	ev.Summary.Info = ""
	ev.SessionID = "s-2"
	if err := remote.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send without summary: %v", err)
	}
}

func TestIngestAudio_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{not json`, "uid and sessionId are required"},
		{"missing uid", `{"sessionId":"s"}`, "uid and sessionId are required"},
		{"missing timestamp", `{"uid":"u","sessionId":"s"}`, "timestamp is required"},
		{"missing location", `{"uid":"u","sessionId":"s","timestamp":"t"}`, "location is required"},
		{"empty summary", `{"uid":"u","sessionId":"s","timestamp":"t","location":"l","summary":""}`, "summary is required"},
		{"float confidence", `{"uid":"u","sessionId":"s","timestamp":"t","location":"l","summary":"x","confidence":0.87}`, "confidence must be an integer"},
		{"string confidence", `{"uid":"u","sessionId":"s","timestamp":"t","location":"l","summary":"x","confidence":"87"}`, "confidence must be an integer"},
		{"bad embedding", `{"uid":"u","sessionId":"s","timestamp":"t","location":"l","summary":"x","embedding":["a"]}`, "embedding must be a list of numbers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newMemStore()
			code, out := post(t, newTestHandler(t, store), "/ingestAudio", tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
			if out["error"] != tt.want {
				t.Errorf("error = %v, want %q", out["error"], tt.want)
			}
			if len(store.items) != 0 {
				t.Error("invalid request was stored")
			}
		})
	}
}

func TestIngestAudio_NullConfidenceAccepted(t *testing.T) {
	t.Parallel()

	code, _ := post(t, newTestHandler(t, newMemStore()), "/ingestAudio",
		`{"uid":"u","sessionId":"s","timestamp":"t","location":"l","summary":"x","confidence":null}`)
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestIngestAudio_Embedding(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	code, out := post(t, newTestHandler(t, store), "/ingestAudio",
		`{"uid":"u","sessionId":"s","timestamp":"t","location":"l","summary":"x","embedding":[0.5,1,-2]}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	it, _ := store.Item(context.Background(), "s", out["itemId"].(string))
	if len(it.Vector) != 3 || it.Vector[2] != -2 {
		t.Errorf("vector = %v", it.Vector)
	}
}

func TestIngestArray(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	h := newTestHandler(t, store)

	code, out := post(t, h, "/ingestArray", `{"uid":"u","sessionId":"s","vector":[1,2,3,4],"meta":{"source":"face"}}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, out)
	}
	it, err := store.Item(context.Background(), "s", out["itemId"].(string))
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if it.ItemType != ItemTypeEmbedding {
		t.Errorf("item type = %q, want default %q", it.ItemType, ItemTypeEmbedding)
	}
	if len(it.Vector) != 4 {
		t.Errorf("vector = %v", it.Vector)
	}
	if meta, _ := it.Data["meta"].(map[string]any); meta["source"] != "face" {
		t.Errorf("meta = %v", it.Data["meta"])
	}

	code, out = post(t, h, "/ingestArray", `{"uid":"u","sessionId":"s","itemType":"gaze","vector":[]}`)
	if code != http.StatusOK {
		t.Fatalf("empty vector: status = %d", code)
	}
	it, _ = store.Item(context.Background(), "s", out["itemId"].(string))
	if it.ItemType != "gaze" {
		t.Errorf("item type = %q, want gaze", it.ItemType)
	}
}

func TestIngestArray_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want string
	}{
		{`{"uid":"u","sessionId":"s"}`, "uid, sessionId, and vector are required"},
		{`{"uid":"u","sessionId":"s","vector":null}`, "uid, sessionId, and vector are required"},
		{`{"uid":"u","sessionId":"s","vector":"1,2"}`, "vector must be a list (e.g., 128 floats)"},
		{`{"uid":"u","sessionId":"s","vector":[1,"x"]}`, "vector must be a list of numbers"},
	}
	for _, tt := range tests {
		code, out := post(t, newTestHandler(t, newMemStore()), "/ingestArray", tt.body)
		if code != http.StatusBadRequest || out["error"] != tt.want {
			t.Errorf("%s: got %d %v, want 400 %q", tt.body, code, out, tt.want)
		}
	}
}

func TestIngest_Signature(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newMemStore(), WithSecret("s3cret"))

	code, out := post(t, h, "/ingestAudio", audioBody)
	if code != http.StatusUnauthorized || out["error"] != "invalid signature" {
		t.Errorf("unsigned: got %d %v", code, out)
	}

	code, _ = post(t, h, "/ingestAudio", audioBody, signature.Header, signature.Sign("wrong", []byte(audioBody)))
	if code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d", code)
	}

	code, _ = post(t, h, "/ingestAudio", audioBody, signature.Header, signature.Sign("s3cret", []byte(audioBody)))
	if code != http.StatusOK {
		t.Errorf("signed: status = %d", code)
	}
}

func TestIngest_StoreFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.saveErr = errors.New("connection refused")
	code, out := post(t, newTestHandler(t, store), "/ingestAudio", audioBody)
	if code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
	if strings.Contains(out["error"].(string), "connection refused") {
		t.Error("storage error leaked to the client")
	}
}

func TestIngest_IDsIncrease(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	h := newTestHandler(t, store)

	_, first := post(t, h, "/ingestArray", `{"uid":"u","sessionId":"s","vector":[1]}`)
	_, second := post(t, h, "/ingestArray", `{"uid":"u","sessionId":"s","vector":[2]}`)
	if first["itemId"] == second["itemId"] {
		t.Errorf("two items in the same millisecond share ID %v", first["itemId"])
	}
	if len(store.items) != 2 {
		t.Errorf("stored %d items, want 2", len(store.items))
	}
}

func TestRoot(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, newMemStore())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || string(body) != Banner {
		t.Errorf("GET / = %d %q", rec.Code, body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /unknown = %d, want 404", rec.Code)
	}
}

func TestNewHandler_RequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil); err == nil {
		t.Error("expected error")
	}
}
