package transcript

import "testing"

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace", "  I met   Dana \n Lee  ", "I met Dana Lee"},
		{"fillers", "um I uh met Dana", "I met Dana"},
		{"filler phrase with comma", "I'm gonna call her, you know, tomorrow", "I'm going to call her, tomorrow"},
		{"filler inside commas", "Dana, um, Lee", "Dana, Lee"},
		{"leading fillers", "Um, so, I met Dana", "I met Dana"},
		{"contractions", "we wanna build kinda fast, gotta ship", "we want to build kind of fast, got to ship"},
		{"capitalised contraction", "Gonna be fun", "Going to be fun"},
		{"repeats", "We we talked about about Go", "We talked about Go"},
		{"repeats across filler", "I um I met her", "I met her"},
		{"space before punctuation", "Hello , world !", "Hello, world!"},
		{"space after punctuation", "Wait,what?Really", "Wait, what? Really"},
		{"numbers untouched", "version 3.5 at 10:30", "version 3.5 at 10:30"},
		{"not a filler inside a word", "also likely swell", "also likely swell"},
		{"only fillers", "um uh like you know", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"  um  so I I met , like , Dana Lee at the the conference ,you know",
		"Gonna gonna wanna WANNA",
		"Well well well, what do we have here ?!",
		"uh, uh, , , ok",
		"she said:yes;he said:no",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestWorthSummarizing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"19 chars 4 words", "abcd efgh ijkl mnop", false},
		{"20 chars 4 words", "abcd efgh ijkl mnopq", true},
		{"5 short words", "a b c d e", true},
		{"4 short words", "a b c d", false},
		{"padding ignored", "   abcd efgh ijkl mnop   ", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := WorthSummarizing(tt.in); got != tt.want {
				t.Errorf("WorthSummarizing(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
