package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/memento/internal/observe"
	"github.com/MrWong99/memento/internal/signature"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Banner is the body of GET /.
const Banner = "Memento ingest backend is running"

// Option is a functional option for [NewHandler].
type Option func(*Handler)

// WithSecret requires every POST to carry a valid [signature.Header].
func WithSecret(secret string) Option {
	return func(h *Handler) { h.secret = secret }
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithClock replaces the time source used for item IDs.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// Handler serves the ingestion endpoints.
type Handler struct {
	store   Store
	secret  string
	metrics *observe.Metrics
	now     func() time.Time

	// lastID keeps item IDs of one process strictly increasing.
	mu     sync.Mutex
	lastID int64
}

// NewHandler returns a Handler writing to store.
func NewHandler(store Store, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, errors.New("ingest: store is required")
	}
	h := &Handler{store: store, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h, nil
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("POST /ingestAudio", h.ingestAudio)
	mux.HandleFunc("POST /ingestArray", h.ingestArray)
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, Banner)
}

// ingestAudio stores a conversation summary.
//
// Required: uid, sessionId, timestamp, location, summary.
// Optional: transcript, skills, nextSteps, confidence (integer), contactInfo,
// gps, embedding, cleanTranscript, segments.
func (h *Handler) ingestAudio(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decode(w, r)
	if !ok {
		return
	}

	uid, sessionID := doc["uid"], doc["sessionId"]
	switch {
	case !truthy(uid) || !truthy(sessionID):
		writeError(w, http.StatusBadRequest, "uid and sessionId are required")
		return
	case !truthy(doc["timestamp"]):
		writeError(w, http.StatusBadRequest, "timestamp is required")
		return
	case !truthy(doc["location"]):
		writeError(w, http.StatusBadRequest, "location is required")
		return
	case !truthy(doc["summary"]):
		writeError(w, http.StatusBadRequest, "summary is required")
		return
	}
	if c, present := doc["confidence"]; present && c != nil && !isInteger(c) {
		writeError(w, http.StatusBadRequest, "confidence must be an integer")
		return
	}

	data := map[string]any{
		"timestamp": doc["timestamp"],
		"location":  doc["location"],
		"summary":   doc["summary"],
	}
	for _, k := range []string{"transcript", "skills", "nextSteps", "contactInfo", "gps", "cleanTranscript", "segments"} {
		if truthy(doc[k]) {
			data[k] = doc[k]
		}
	}
	if c := doc["confidence"]; c != nil {
		data["confidence"] = c
	}

	item := Item{
		SessionID: stringify(sessionID),
		UID:       stringify(uid),
		ItemType:  ItemTypeAudioMeta,
		Data:      data,
	}
	if emb, present := doc["embedding"]; present && emb != nil {
		vec, err := toVector(emb)
		if err != nil {
			writeError(w, http.StatusBadRequest, "embedding must be a list of numbers")
			return
		}
		item.Vector = vec
	}
	h.save(w, r, item)
}

// ingestArray stores a numeric array such as a face embedding.
//
// Required: uid, sessionId, vector. Optional: itemType (default "embedding"),
// meta.
func (h *Handler) ingestArray(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decode(w, r)
	if !ok {
		return
	}

	uid, sessionID, raw := doc["uid"], doc["sessionId"], doc["vector"]
	if !truthy(uid) || !truthy(sessionID) || raw == nil {
		writeError(w, http.StatusBadRequest, "uid, sessionId, and vector are required")
		return
	}
	if _, isList := raw.([]any); !isList {
		writeError(w, http.StatusBadRequest, "vector must be a list (e.g., 128 floats)")
		return
	}
	vec, err := toVector(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "vector must be a list of numbers")
		return
	}

	itemType := ItemTypeEmbedding
	if t, ok := doc["itemType"].(string); ok && t != "" {
		itemType = t
	}
	meta, _ := doc["meta"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}

	h.save(w, r, Item{
		SessionID: stringify(sessionID),
		UID:       stringify(uid),
		ItemType:  itemType,
		Data:      map[string]any{"meta": meta},
		Vector:    vec,
	})
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, item Item) {
	log := observe.Logger(r.Context())

	item.ItemID = strconv.FormatInt(h.nextID(), 10)
	item.CreatedAt = h.now().UTC()
	if err := h.store.Save(r.Context(), item); err != nil {
		log.Error("ingest: save failed", "session_id", item.SessionID, "item_type", item.ItemType, "err", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	h.metrics.RecordIngest(r.Context(), item.ItemType)
	log.Info("ingest: item stored",
		"session_id", item.SessionID,
		"item_id", item.ItemID,
		"item_type", item.ItemType,
	)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "itemId": item.ItemID})
}

// nextID returns the current Unix time in milliseconds, bumped past the
// previous ID when two requests land in the same millisecond.
func (h *Handler) nextID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.now().UnixMilli()
	if id <= h.lastID {
		id = h.lastID + 1
	}
	h.lastID = id
	return id
}

// decode reads and authenticates the body. Malformed JSON decodes as an
// empty document so that the field checks report what is missing.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	if h.secret != "" && !signature.Verify(h.secret, body, r.Header.Get(signature.Header)) {
		observe.Logger(r.Context()).Warn("ingest: rejected unsigned request", "path", r.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return nil, false
	}

	doc := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		doc = map[string]any{}
	}
	return doc, true
}

// truthy is the presence check used for required fields:
// null, false, zero, and empty strings, lists and objects count as missing.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}

func isInteger(v any) bool {
	n, ok := v.(json.Number)
	if !ok {
		return false
	}
	_, err := strconv.ParseInt(n.String(), 10, 64)
	return err == nil
}

func toVector(v any) ([]float32, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, errors.New("not a list")
	}
	out := make([]float32, len(list))
	for i, e := range list {
		n, ok := e.(json.Number)
		if !ok {
			return nil, errors.New("not a number")
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// stringify renders an identifier that may arrive as a string or number.
func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
