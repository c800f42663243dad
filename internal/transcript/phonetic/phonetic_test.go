package phonetic_test

import (
	"testing"

	"github.com/MrWong99/memento/internal/transcript/phonetic"
)

func TestMatcher_ExactPhrase(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	end, score, ok := m.Find("OK, please start recording now", "start recording")
	if !ok {
		t.Fatal("Find: ok=false, want true")
	}
	if score != 1 {
		t.Errorf("score = %f, want 1", score)
	}
	if end != 4 {
		t.Errorf("end = %d, want 4", end)
	}
}

func TestMatcher_MisheardPhrase(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		text, phrase string
	}{
		{"hey momento let's go", "hey memento"},
		{"take nodes on this", "take notes"},
	}
	for _, tt := range tests {
		_, score, ok := m.Find(tt.text, tt.phrase)
		if !ok {
			t.Errorf("Find(%q, %q): ok=false, want true", tt.text, tt.phrase)
			continue
		}
		if score < 0.8 || score >= 1 {
			t.Errorf("Find(%q, %q): score=%f, want in [0.8,1)", tt.text, tt.phrase, score)
		}
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if _, _, ok := m.Find("I love pizza", "start recording"); ok {
		t.Error("Find: ok=true for unrelated text")
	}
	if _, _, ok := m.Find("start", "start recording"); ok {
		t.Error("Find: ok=true for text shorter than phrase")
	}
	if _, _, ok := m.Find("anything", ""); ok {
		t.Error("Find: ok=true for empty phrase")
	}
}

func TestMatcher_StrictThreshold(t *testing.T) {
	t.Parallel()

	m := phonetic.New(phonetic.WithPhoneticThreshold(0.999))
	if _, _, ok := m.Find("hey momento", "hey memento"); ok {
		t.Error("near match accepted above a strict threshold")
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	got := phonetic.Tokens("Hey, Memento! That's it.")
	want := []string{"hey", "memento", "that's", "it"}
	if len(got) != len(want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
