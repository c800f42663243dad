// Package mock provides test doubles for the capture.Session,
// capture.Summarizer and capture.Sink interfaces.
//
// All types record their calls under a mutex and are safe for concurrent
// use. Set exported fields before handing a mock to the code under test.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/memento/internal/capture"
	"github.com/MrWong99/memento/internal/sink"
	"github.com/MrWong99/memento/internal/summary"
)

// ── Session ─────────────────────────────────────────────────────────────────

// Session is a mock implementation of capture.Session.
type Session struct {
	mu sync.Mutex

	// SpeakErr, ShowErr and StopErr are returned by the matching method.
	SpeakErr error
	ShowErr  error
	StopErr  error

	spoken    []string
	shown     []string
	stopCalls int
}

// Speak records text.
func (s *Session) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return s.SpeakErr
}

// ShowText records text.
func (s *Session) ShowText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, text)
	return s.ShowErr
}

// StopAudio counts the call.
func (s *Session) StopAudio(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return s.StopErr
}

// Spoken returns a copy of every text passed to Speak.
func (s *Session) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// Shown returns a copy of every text passed to ShowText.
func (s *Session) Shown() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.shown...)
}

// LastShown returns the most recent ShowText argument.
func (s *Session) LastShown() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shown) == 0 {
		return ""
	}
	return s.shown[len(s.shown)-1]
}

// StopCalls returns how often StopAudio was called.
func (s *Session) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// ── Summarizer ──────────────────────────────────────────────────────────────

// Summarizer is a mock implementation of capture.Summarizer.
type Summarizer struct {
	mu sync.Mutex

	// Record and Err are returned by Summarize.
	Record summary.Record
	Err    error

	// Block, if non-nil, makes Summarize wait until it is closed.
	Block chan struct{}

	// Started, if non-nil, receives one value when Summarize is entered.
	Started chan struct{}

	calls []string
}

// Summarize records cleaned and returns Record, Err.
func (s *Summarizer) Summarize(ctx context.Context, cleaned string) (summary.Record, error) {
	s.mu.Lock()
	s.calls = append(s.calls, cleaned)
	block, started := s.Block, s.Started
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return summary.Record{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Record, s.Err
}

// Calls returns every transcript passed to Summarize.
func (s *Summarizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ── Sink ────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of capture.Sink.
type Sink struct {
	mu sync.Mutex

	// Result is returned by Deliver.
	Result sink.Result

	// Delivered, if non-nil, receives every delivered event.
	Delivered chan sink.Event

	events []sink.Event
}

// Deliver records ev and returns Result.
func (s *Sink) Deliver(_ context.Context, ev sink.Event) sink.Result {
	s.mu.Lock()
	s.events = append(s.events, ev)
	res, ch := s.Result, s.Delivered
	s.mu.Unlock()

	if ch != nil {
		ch <- ev
	}
	return res
}

// Events returns every delivered event.
func (s *Sink) Events() []sink.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sink.Event(nil), s.events...)
}

var (
	_ capture.Session    = (*Session)(nil)
	_ capture.Summarizer = (*Summarizer)(nil)
	_ capture.Sink       = (*Sink)(nil)
)
