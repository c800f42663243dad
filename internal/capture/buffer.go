package capture

import (
	"strings"
	"time"

	"github.com/MrWong99/memento/internal/sink"
)

// Buffer accumulates the speech of one utterance: finalised segments in
// arrival order plus the latest interim result. It is not safe for
// concurrent use; [Machine] guards it.
type Buffer struct {
	segments []sink.Segment
	partial  string
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.segments = nil
	b.partial = ""
}

// AppendFinal adds a completed segment. An interim result contained in the
// final text, or one that starts with it, is stale and dropped.
func (b *Buffer) AppendFinal(tr Transcription, at time.Time) {
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return
	}
	if p := fold(b.partial); p != "" {
		if f := fold(text); strings.Contains(f, p) || strings.HasPrefix(p, f) {
			b.partial = ""
		}
	}
	b.segments = append(b.segments, sink.Segment{
		Index:      len(b.segments),
		Text:       text,
		ReceivedAt: at,
		StartTime:  tr.StartTime,
		EndTime:    tr.EndTime,
		SpeakerID:  tr.SpeakerID,
	})
}

// ClearPartial drops the interim preview.
func (b *Buffer) ClearPartial() { b.partial = "" }

// SetPartial replaces the interim preview.
func (b *Buffer) SetPartial(text string) {
	b.partial = strings.TrimSpace(text)
}

// LiveText is every segment followed by the partial, space separated.
func (b *Buffer) LiveText() string {
	parts := make([]string, 0, len(b.segments)+1)
	for _, s := range b.segments {
		parts = append(parts, s.Text)
	}
	if b.partial != "" {
		parts = append(parts, b.partial)
	}
	return strings.Join(parts, " ")
}

// Len returns the number of finalised segments.
func (b *Buffer) Len() int { return len(b.segments) }

// Snapshot is a frozen copy of a buffer.
type Snapshot struct {
	Text     string
	Segments []sink.Segment
}

// Take returns the current contents and resets the buffer.
func (b *Buffer) Take() Snapshot {
	s := Snapshot{Text: b.LiveText(), Segments: b.segments}
	b.Reset()
	return s
}

// fold lower-cases s and trims the punctuation recognisers add to finals.
func fold(s string) string {
	return trimPunct(strings.ToLower(s))
}
