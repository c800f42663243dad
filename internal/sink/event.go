// Package sink delivers finished capture events.
//
// Two destinations exist: [Local] writes one JSON file per event into an
// output directory and [Remote] POSTs an ingestion payload to an HTTP
// endpoint. [Fanout] drives both independently: a failure of one never
// blocks or undoes the other, and neither failure is returned as an error to
// the capture pipeline.
package sink

import (
	"errors"
	"time"

	"github.com/MrWong99/memento/internal/summary"
)

// Segment is one finalised piece of transcript in arrival order.
type Segment struct {
	// Index is the 0-based arrival position within the utterance.
	Index int `json:"index"`

	Text string `json:"text"`

	// ReceivedAt is when the segment reached the capture server.
	ReceivedAt time.Time `json:"receivedAt"`

	// StartTime and EndTime are the recogniser's offsets in milliseconds,
	// when it sent them.
	StartTime int64 `json:"startTime,omitempty"`
	EndTime   int64 `json:"endTime,omitempty"`

	SpeakerID string `json:"speakerId,omitempty"`
}

// Location is the wearer's last known position.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy,omitempty"`

	// Name is a human-readable place name, when the device resolved one.
	Name string `json:"name,omitempty"`
}

// Event is the durable record of one finished utterance. It is created once
// and never updated.
type Event struct {
	// ID is a unique, sortable identifier. [Fanout.Deliver] fills it when
	// empty.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`

	// Reason is why collection stopped ("stop-phrase", "silence-timeout").
	Reason string `json:"reason,omitempty"`

	Summary summary.Record `json:"summary"`

	// Transcript is the raw live text; CleanTranscript is what the
	// summarizer saw.
	Transcript      string    `json:"transcript"`
	CleanTranscript string    `json:"cleanTranscript"`
	Segments        []Segment `json:"segments"`

	GPS *Location `json:"gps,omitempty"`

	// Embedding is an optional face embedding, passed through untouched.
	Embedding []float32 `json:"embedding,omitempty"`
}

// PlaceName returns the summary location, falling back to the GPS place name.
func (e Event) PlaceName() string {
	if e.Summary.Location != "" {
		return e.Summary.Location
	}
	if e.GPS != nil {
		return e.GPS.Name
	}
	return ""
}

// Result reports the outcome of both deliveries of one event.
type Result struct {
	// LocalPath is the written file. Empty when the local write failed or
	// no local sink is configured.
	LocalPath string

	// RemoteSent is true when the ingestion endpoint accepted the event.
	RemoteSent bool

	LocalErr  error
	RemoteErr error
}

// Err joins both delivery errors. Nil when everything configured succeeded.
func (r Result) Err() error {
	return errors.Join(r.LocalErr, r.RemoteErr)
}

// Saved reports whether at least one destination accepted the event.
func (r Result) Saved() bool {
	return r.LocalPath != "" || r.RemoteSent
}
