package capture

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/memento/internal/summary"
	"github.com/MrWong99/memento/internal/transcript/phonetic"
)

func TestPhrases_MatchWake(t *testing.T) {
	t.Parallel()

	p := NewPhrases("ok glasses")
	tests := []struct {
		text     string
		wantOK   bool
		wantRest string
	}{
		{"OK glasses", true, ""},
		{"Start Recording.", true, ""},
		{"alright, take notes: her name is Kim", true, "her name is Kim"},
		{"hey memento", true, ""},
		{"could you capture this for me", true, "for me"},
		{"nice weather today", false, ""},
	}
	for _, tt := range tests {
		rest, ok := p.MatchWake(tt.text)
		if ok != tt.wantOK || rest != tt.wantRest {
			t.Errorf("MatchWake(%q) = (%q, %v), want (%q, %v)", tt.text, rest, ok, tt.wantRest, tt.wantOK)
		}
	}
	if p.WakePhrase() != "ok glasses" {
		t.Errorf("WakePhrase() = %q", p.WakePhrase())
	}
}

func TestPhrases_DefaultWakePhrase(t *testing.T) {
	t.Parallel()

	p := NewPhrases("  ")
	if p.WakePhrase() != DefaultWakePhrase {
		t.Errorf("WakePhrase() = %q, want %q", p.WakePhrase(), DefaultWakePhrase)
	}
	n := 0
	for _, w := range p.wake {
		if w == DefaultWakePhrase {
			n++
		}
	}
	if n != 1 {
		t.Errorf("default wake phrase listed %d times", n)
	}
}

func TestPhrases_FuzzyWake(t *testing.T) {
	t.Parallel()

	strict := NewPhrases("")
	if _, ok := strict.MatchWake("hey momento what's up"); ok {
		t.Fatal("exact matcher accepted a misheard wake phrase")
	}

	fuzzy := NewPhrases("", WithFuzzyWake(phonetic.New()))
	rest, ok := fuzzy.MatchWake("hey momento what's up")
	if !ok {
		t.Fatal("fuzzy matcher rejected hey momento")
	}
	if rest != "what's up" {
		t.Errorf("rest = %q, want %q", rest, "what's up")
	}
}

func TestPhrases_MatchStop(t *testing.T) {
	t.Parallel()

	p := NewPhrases("")
	tests := []struct {
		text       string
		wantOK     bool
		wantBefore string
	}{
		{"done", true, ""},
		{"Thanks!", true, ""},
		{"Great to meet you, thank you", true, "Great to meet you"},
		{"OK that's it.", true, "OK"},
		{"we should talk again, bye", true, "we should talk again"},
		{"let's call it the end", false, ""},
		{"I mostly work on the backend", false, ""},
		{"I met her through a friend", false, ""},
		{"we will both attend", false, ""},
		{"ok we're all set, bye.", true, "ok we're all set"},
		// Substring matching is deliberately loose.
		{"the project was abandoned last year", true, "the project was aban"},
		{"I work at Acme on the robotics team", false, ""},
	}
	for _, tt := range tests {
		before, ok := p.MatchStop(tt.text)
		if ok != tt.wantOK || before != tt.wantBefore {
			t.Errorf("MatchStop(%q) = (%q, %v), want (%q, %v)", tt.text, before, ok, tt.wantBefore, tt.wantOK)
		}
	}
}

func TestBuffer(t *testing.T) {
	t.Parallel()

	var b Buffer
	now := time.Now()
	b.SetPartial("hello wor")
	b.AppendFinal(Transcription{Text: "hello world", StartTime: 10, EndTime: 900}, now)
	b.SetPartial("how are")
	if got := b.LiveText(); got != "hello world how are" {
		t.Errorf("LiveText = %q", got)
	}
	b.AppendFinal(Transcription{Text: "  "}, now)
	if b.Len() != 1 {
		t.Errorf("blank final appended, Len = %d", b.Len())
	}

	snap := b.Take()
	if snap.Text != "hello world how are" || len(snap.Segments) != 1 {
		t.Errorf("Take = %+v", snap)
	}
	if snap.Segments[0].EndTime != 900 {
		t.Errorf("segment timing lost: %+v", snap.Segments[0])
	}
	if b.LiveText() != "" || b.Len() != 0 {
		t.Error("Take did not reset the buffer")
	}
}

func TestBuffer_FinalSupersedesPartialIgnoringCase(t *testing.T) {
	t.Parallel()

	var b Buffer
	now := time.Now()
	b.AppendFinal(Transcription{Text: "hello world"}, now)
	b.SetPartial("see you")
	b.AppendFinal(Transcription{Text: "See you."}, now)
	if got := b.LiveText(); got != "hello world See you." {
		t.Errorf("LiveText = %q", got)
	}

	b.SetPartial("done")
	b.ClearPartial()
	if got := b.Take().Text; got != "hello world See you." {
		t.Errorf("Take after ClearPartial = %q", got)
	}
}

func TestRecap(t *testing.T) {
	t.Parallel()

	got := Recap(summary.Record{
		Info:     "Dana Lee, robotics at Acme",
		Contact:  "dana@acme.io",
		Skills:   []string{"robotics", "Go"},
		Location: "",
		Next:     "send the deck",
	})
	want := "Captured. Dana Lee, robotics at Acme. Contact: dana@acme.io. Skills: robotics, Go. Next steps: send the deck."
	if got != want {
		t.Errorf("Recap =\n%q\nwant\n%q", got, want)
	}
	if got := Recap(summary.Record{}); got != "Conversation captured." {
		t.Errorf("empty Recap = %q", got)
	}
	if strings.Contains(got, "Location") {
		t.Error("empty location included in recap")
	}
}
