// Package phonetic finds spoken phrases in a transcript while tolerating the
// typical speech-to-text mishearings of brand words ("hey momento" for
// "hey memento", "take nodes" for "take notes").
//
// Matching works on sliding windows of transcript words, one window per
// position, each as long as the phrase:
//
//  1. Every word pair in the window must agree phonetically (shared Double
//     Metaphone code) or be close as strings (Jaro-Winkler above the fuzzy
//     threshold).
//  2. The window as a whole is then ranked by Jaro-Winkler similarity to the
//     phrase and accepted above the phonetic threshold.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.88
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum whole-window Jaro-Winkler score.
// Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the per-word Jaro-Winkler score that stands in for
// a phonetic code match. Default: 0.88.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Find looks for phrase in text. It returns the index (in words of text) just
// past the best matching window, the window's score, and whether a window was
// accepted. An exact match scores 1.
func (m *Matcher) Find(text, phrase string) (end int, score float64, ok bool) {
	words := Tokens(text)
	target := Tokens(phrase)
	if len(target) == 0 || len(words) < len(target) {
		return 0, 0, false
	}
	targetFull := strings.Join(target, " ")

	for i := 0; i+len(target) <= len(words); i++ {
		window := words[i : i+len(target)]
		if !m.wordsAgree(window, target) {
			continue
		}
		s := matchr.JaroWinkler(strings.Join(window, " "), targetFull, false)
		if s >= m.phoneticThreshold && s > score {
			end, score, ok = i+len(target), s, true
		}
	}
	return end, score, ok
}

func (m *Matcher) wordsAgree(window, target []string) bool {
	for i := range target {
		if window[i] == target[i] {
			continue
		}
		if codesOverlap(codes(window[i]), codes(target[i])) {
			continue
		}
		if matchr.JaroWinkler(window[i], target[i], false) >= m.fuzzyThreshold {
			continue
		}
		return false
	}
	return true
}

// Tokens lower-cases s and splits it into words, dropping punctuation other
// than apostrophes.
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// codes returns the non-empty Double Metaphone codes of a word.
func codes(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	out := make([]string, 0, 2)
	if p != "" {
		out = append(out, p)
	}
	if s != "" && s != p {
		out = append(out, s)
	}
	return out
}

func codesOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
