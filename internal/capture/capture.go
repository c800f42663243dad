// Package capture implements the wake-word gated conversation capture state
// machine of a single wearable session.
//
// A [Machine] consumes the session's transcription and voice-activity events.
// A wake phrase arms it, subsequent speech is buffered, and a stop phrase or
// two minutes of silence ends the utterance. The finished utterance is
// cleaned, summarised and handed to a [Sink]; the wearer hears a recap.
//
//	Idle ──wake──▶ Armed ──speech──▶ Collecting ──stop/silence──▶ Processing ──▶ Idle
//
// While an utterance is processing every incoming event is dropped, so at
// most one finish runs per session at any time.
package capture

import (
	"context"

	"github.com/MrWong99/memento/internal/sink"
	"github.com/MrWong99/memento/internal/summary"
)

// Transcription is a speech-to-text result from the wearable.
type Transcription struct {
	Text string

	// IsFinal marks a completed segment. Interim results replace each other.
	IsFinal bool

	// StartTime and EndTime are recogniser offsets in milliseconds. Zero when
	// not sent.
	StartTime int64
	EndTime   int64

	SpeakerID string
}

// VoiceActivity reports whether the wearer's microphone currently hears
// speech. It is advisory only.
type VoiceActivity struct {
	Speaking bool
}

// FinishReason says why collection stopped.
type FinishReason string

const (
	ReasonStopPhrase     FinishReason = "stop-phrase"
	ReasonSilenceTimeout FinishReason = "silence-timeout"
)

// Session is the output side of a wearable connection.
type Session interface {
	// Speak says text aloud and returns once playback finished.
	Speak(ctx context.Context, text string) error

	// ShowText replaces the full-screen text view. Last write wins.
	ShowText(ctx context.Context, text string) error

	// StopAudio interrupts any ongoing playback.
	StopAudio(ctx context.Context) error
}

// Summarizer turns a cleaned transcript into a validated record.
type Summarizer interface {
	Summarize(ctx context.Context, cleaned string) (summary.Record, error)
}

// Sink persists a finished event. It reports failures in the result instead
// of returning them.
type Sink interface {
	Deliver(ctx context.Context, ev sink.Event) sink.Result
}

var (
	_ Summarizer = (*summary.Client)(nil)
	_ Sink       = (*sink.Fanout)(nil)
)
