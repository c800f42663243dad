package capture

import (
	"slices"
	"strings"

	"github.com/MrWong99/memento/internal/transcript/phonetic"
)

// DefaultWakePhrase is used when no wake phrase is configured.
const DefaultWakePhrase = "hey memento"

// wakeAlternatives are accepted in addition to the configured wake phrase.
var wakeAlternatives = []string{
	"start recording",
	"take notes",
	"capture this",
	"start capture",
	"remember this",
	"log this",
	"hey memento",
}

// stopPhrases end collection when found anywhere in a final transcription.
var stopPhrases = []string{
	"that's it",
	"thank you",
	"thanks",
	"goodbye",
	"end recording",
	"stop recording",
	"finish recording",
	"that's all",
	"we're done",
	"all done",
	"done",
	"stop",
	"bye",
}

// stopSuffixes end collection when the trimmed text ends with them as a
// whole word.
var stopSuffixes = []string{"done", "stop", "thanks", "bye"}

// Phrases recognises wake and stop phrases. Matching is case-insensitive
// substring matching; with fuzzy wake enabled, wake phrases are also found
// when misheard. Read-only after construction.
type Phrases struct {
	wake    []string
	matcher *phonetic.Matcher
}

// PhrasesOption configures [NewPhrases].
type PhrasesOption func(*Phrases)

// WithFuzzyWake enables phonetic wake-phrase matching.
func WithFuzzyWake(m *phonetic.Matcher) PhrasesOption {
	return func(p *Phrases) { p.matcher = m }
}

// NewPhrases returns a Phrases with wakePhrase as the primary wake phrase.
// Empty means [DefaultWakePhrase].
func NewPhrases(wakePhrase string, opts ...PhrasesOption) *Phrases {
	primary := strings.ToLower(strings.TrimSpace(wakePhrase))
	if primary == "" {
		primary = DefaultWakePhrase
	}
	p := &Phrases{wake: []string{primary}}
	for _, w := range wakeAlternatives {
		if !slices.Contains(p.wake, w) {
			p.wake = append(p.wake, w)
		}
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WakePhrase returns the primary wake phrase.
func (p *Phrases) WakePhrase() string { return p.wake[0] }

// MatchWake reports whether text contains a wake phrase and returns the text
// that follows the earliest one.
func (p *Phrases) MatchWake(text string) (rest string, ok bool) {
	lower := strings.ToLower(text)
	at, end := -1, 0
	for _, w := range p.wake {
		if i := strings.Index(lower, w); i >= 0 && (at < 0 || i < at) {
			at, end = i, i+len(w)
		}
	}
	if at >= 0 {
		return trimPunct(sameLen(text, lower)[end:]), true
	}

	if p.matcher == nil {
		return "", false
	}
	best, bestEnd := 0.0, -1
	for _, w := range p.wake {
		if e, score, ok := p.matcher.Find(text, w); ok && score > best {
			best, bestEnd = score, e
		}
	}
	if bestEnd < 0 {
		return "", false
	}
	return strings.Join(phonetic.Tokens(text)[bestEnd:], " "), true
}

// MatchStop reports whether text ends the utterance. before is the part of
// text preceding the stop phrase, which still belongs to the utterance.
func (p *Phrases) MatchStop(text string) (before string, ok bool) {
	lower := strings.ToLower(text)
	at := -1
	for _, s := range stopPhrases {
		if i := strings.Index(lower, s); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at >= 0 {
		return trimPunct(sameLen(text, lower)[:at]), true
	}

	trimmed := strings.TrimRight(lower, " \t.,!?;:")
	for _, s := range stopSuffixes {
		cut := len(trimmed) - len(s)
		if !strings.HasSuffix(trimmed, s) || (cut > 0 && isWordByte(trimmed[cut-1])) {
			continue
		}
		return trimPunct(sameLen(text, lower)[:cut]), true
	}
	return "", false
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '\'' || c >= 0x80
}

func trimPunct(s string) string {
	return strings.Trim(s, " \t\n.,!?;:-")
}

// sameLen returns text when lowering kept its byte offsets, else lower.
func sameLen(text, lower string) string {
	if len(text) == len(lower) {
		return text
	}
	return lower
}
