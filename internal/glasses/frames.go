package glasses

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/memento/internal/capture"
	"github.com/MrWong99/memento/internal/sink"
)

// Client frame types.
const (
	FrameHello         = "hello"
	FrameTranscription = "transcription"
	FrameVAD           = "vad"
	FrameLocation      = "location"
	FrameSpeakDone     = "speak_done"
)

// Server frame types.
const (
	FrameSpeak     = "speak"
	FrameDisplay   = "display"
	FrameStopAudio = "stop_audio"
)

// VADStatus is the voice-activity flag. Devices send it either as a JSON
// boolean or as the string "true" / "false".
type VADStatus bool

// UnmarshalJSON accepts true, false, "true" and "false".
func (s *VADStatus) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = VADStatus(b)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("glasses: vad status must be a boolean or string, got %s", data)
	}
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "true":
		*s = true
	case "false":
		*s = false
	default:
		return fmt.Errorf("glasses: invalid vad status %q", str)
	}
	return nil
}

// ClientFrame is any frame sent by the wearable. Fields not used by a frame
// type are left zero.
type ClientFrame struct {
	Type string `json:"type"`

	// transcription
	Text      string `json:"text,omitempty"`
	IsFinal   bool   `json:"isFinal,omitempty"`
	StartTime int64  `json:"startTime,omitempty"`
	EndTime   int64  `json:"endTime,omitempty"`
	SpeakerID string `json:"speakerId,omitempty"`

	// vad
	Status VADStatus `json:"status,omitempty"`

	// hello
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	// hello carries a nested location; location frames may use either the
	// nested form or top-level coordinates.
	Location  *sink.Location `json:"location,omitempty"`
	Latitude  *float64       `json:"lat,omitempty"`
	Longitude *float64       `json:"lng,omitempty"`
	Accuracy  float64        `json:"accuracy,omitempty"`
	Name      string         `json:"name,omitempty"`

	// speak_done
	ID string `json:"id,omitempty"`
}

// Transcription converts a transcription frame.
func (f ClientFrame) Transcription() capture.Transcription {
	return capture.Transcription{
		Text:      f.Text,
		IsFinal:   f.IsFinal,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		SpeakerID: f.SpeakerID,
	}
}

// Position returns the location carried by the frame, or nil.
func (f ClientFrame) Position() *sink.Location {
	if f.Location != nil {
		return f.Location
	}
	if f.Latitude == nil || f.Longitude == nil {
		return nil
	}
	return &sink.Location{
		Latitude:  *f.Latitude,
		Longitude: *f.Longitude,
		Accuracy:  f.Accuracy,
		Name:      f.Name,
	}
}

// ServerFrame is any frame sent to the wearable.
type ServerFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
}
