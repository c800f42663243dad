// Package transcript cleans streaming speech-to-text output before it is
// handed to a summarizer.
//
// [Clean] is a pure text normaliser: it strips filler words, expands casual
// contractions, collapses stuttered repeats and tidies punctuation spacing.
// [WorthSummarizing] is the size guard that keeps trivially short captures
// away from the language model.
//
// Everything in this package is safe for concurrent use.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Minimum size of a transcript worth sending to a summarizer. Text shorter
// than MinChars is still accepted when it has at least MinWords words.
const (
	MinChars = 20
	MinWords = 5
)

// maxPasses bounds the fixed-point loop in [Clean].
const maxPasses = 4

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Filler words and phrases, matched as whole words. A comma directly
	// after the filler goes with it ("um, so" -> "").
	fillerRe = regexp.MustCompile(`(?i)\b(?:you\s+know|um+|uh+|er|ah|like|so|well)\b,?`)

	contractions = []struct {
		re   *regexp.Regexp
		with string
	}{
		{regexp.MustCompile(`(?i)\bgonna\b`), "going to"},
		{regexp.MustCompile(`(?i)\bwanna\b`), "want to"},
		{regexp.MustCompile(`(?i)\bkinda\b`), "kind of"},
		{regexp.MustCompile(`(?i)\bgotta\b`), "got to"},
	}

	spaceBeforePunctRe = regexp.MustCompile(`\s+([,.!?;:])`)
	spaceAfterPunctRe  = regexp.MustCompile(`([,.!?;:])[ \t]*(\pL)`)
	repeatedCommaRe    = regexp.MustCompile(`([,;:])(?:\s*[,;:])+`)
	leadingPunctRe     = regexp.MustCompile(`^[\s,;:.!?]+`)
)

// Clean normalises raw transcript text. The passes run in order:
//
//  1. collapse whitespace runs and trim
//  2. strip filler words ("um", "uh", "like", "you know", ...)
//  3. expand casual contractions ("gonna" -> "going to")
//  4. collapse immediately repeated words ("I I met" -> "I met")
//  5. fix punctuation spacing: none before , . ! ? ; : and one space after
//     when a word follows
//  6. collapse whitespace again
//
// The sequence is repeated until the text stops changing, so
// Clean(Clean(s)) == Clean(s). Clean never fails; it may return "".
func Clean(raw string) string {
	out := collapseSpace(raw)
	for range maxPasses {
		next := cleanPass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func cleanPass(s string) string {
	s = collapseSpace(s)
	s = fillerRe.ReplaceAllString(s, " ")
	for _, c := range contractions {
		s = c.re.ReplaceAllStringFunc(s, func(m string) string {
			return matchCase(m, c.with)
		})
	}
	s = collapseSpace(s)
	s = collapseRepeats(s)
	s = spaceBeforePunctRe.ReplaceAllString(s, "$1")
	s = repeatedCommaRe.ReplaceAllString(s, "$1")
	s = spaceAfterPunctRe.ReplaceAllString(s, "$1 $2")
	s = leadingPunctRe.ReplaceAllString(s, "")
	return collapseSpace(s)
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// collapseRepeats drops a word that repeats the word right before it,
// ignoring case. Words carrying punctuation only match an identical token.
func collapseRepeats(s string) string {
	words := strings.Split(s, " ")
	out := words[:0]
	for _, w := range words {
		if w == "" {
			continue
		}
		if n := len(out); n > 0 && strings.EqualFold(out[n-1], w) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// matchCase capitalises repl when the matched word was capitalised.
func matchCase(matched, repl string) string {
	r, _ := utf8.DecodeRuneInString(matched)
	if !unicode.IsUpper(r) {
		return repl
	}
	first, size := utf8.DecodeRuneInString(repl)
	return string(unicode.ToUpper(first)) + repl[size:]
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// WorthSummarizing reports whether text is long enough to summarise: it is
// rejected only when it is both shorter than [MinChars] characters and has
// fewer than [MinWords] words.
func WorthSummarizing(text string) bool {
	text = strings.TrimSpace(text)
	return utf8.RuneCountInString(text) >= MinChars || WordCount(text) >= MinWords
}
