package sink

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/memento/internal/observe"
	"github.com/MrWong99/memento/internal/signature"
)

const defaultRemoteTimeout = 10 * time.Second

// The ingestion endpoint rejects an empty location or summary, so payloads
// carry these instead.
const (
	UnknownLocation = "unknown"
	NoSummary       = "No summary"
)

// IngestPayload is the JSON document POSTed to the ingestion endpoint.
type IngestPayload struct {
	UID         string   `json:"uid"`
	SessionID   string   `json:"sessionId"`
	Timestamp   string   `json:"timestamp"`
	Location    string   `json:"location"`
	Summary     string   `json:"summary"`
	Transcript  string   `json:"transcript"`
	Skills      []string `json:"skills"`
	NextSteps   string   `json:"nextSteps"`
	Confidence  int      `json:"confidence"`
	ContactInfo string   `json:"contactInfo"`

	GPS             *Location `json:"gps,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
	CleanTranscript string    `json:"cleanTranscript,omitempty"`
	Segments        []Segment `json:"segments,omitempty"`
}

// RemoteOption is a functional option for [NewRemote].
type RemoteOption func(*Remote)

// WithSecret signs every request body with HMAC-SHA256 in the
// [signature.Header] header.
func WithSecret(secret string) RemoteOption {
	return func(r *Remote) { r.secret = secret }
}

// WithTargetID tags outgoing payloads with a fixed uid instead of the
// event's user ID.
func WithTargetID(id string) RemoteOption {
	return func(r *Remote) { r.targetID = id }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

// WithRemoteTimeout bounds one delivery. Default: 10s.
func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.timeout = d }
}

// Remote forwards events to an append-only HTTP ingestion endpoint.
type Remote struct {
	url      string
	secret   string
	targetID string
	timeout  time.Duration
	client   *http.Client
}

// NewRemote returns a Remote posting to url.
func NewRemote(url string, opts ...RemoteOption) (*Remote, error) {
	if url == "" {
		return nil, errors.New("sink: ingestion URL must not be empty")
	}
	r := &Remote{url: url, timeout: defaultRemoteTimeout}
	for _, o := range opts {
		o(r)
	}
	if r.client == nil {
		r.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
	return r, nil
}

// Payload converts ev to the ingestion document.
func (r *Remote) Payload(ev Event) IngestPayload {
	uid := ev.UserID
	if r.targetID != "" {
		uid = r.targetID
	}
	return IngestPayload{
		UID:             uid,
		SessionID:       ev.SessionID,
		Timestamp:       ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Location:        payloadLocation(ev),
		Summary:         cmp.Or(ev.Summary.Info, NoSummary),
		Transcript:      ev.Transcript,
		Skills:          ev.Summary.Skills,
		NextSteps:       ev.Summary.Next,
		Confidence:      int(math.Round(ev.Summary.Conf * 100)),
		ContactInfo:     ev.Summary.Contact,
		GPS:             ev.GPS,
		Embedding:       ev.Embedding,
		CleanTranscript: ev.CleanTranscript,
		Segments:        ev.Segments,
	}
}

// payloadLocation prefers a place name, then raw coordinates as "lat,lng".
func payloadLocation(ev Event) string {
	if name := ev.PlaceName(); name != "" {
		return name
	}
	if ev.GPS != nil {
		return fmt.Sprintf("%.5f,%.5f", ev.GPS.Latitude, ev.GPS.Longitude)
	}
	return UnknownLocation
}

// Send POSTs ev. Any non-2xx response is an error.
func (r *Remote) Send(ctx context.Context, ev Event) error {
	ctx, span := observe.StartSpan(ctx, "sink.remote", trace.WithAttributes(attribute.String("event.id", ev.ID)))
	defer span.End()

	if err := r.send(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remote delivery failed")
		return err
	}
	return nil
}

func (r *Remote) send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(r.Payload(ev))
	if err != nil {
		return fmt.Errorf("sink: encode payload: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sink: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.secret != "" {
		req.Header.Set(signature.Header, signature.Sign(r.secret, body))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink: post to ingestion endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink: ingestion endpoint returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return nil
}
