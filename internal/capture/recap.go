package capture

import (
	"fmt"
	"strings"

	"github.com/MrWong99/memento/internal/sink"
	"github.com/MrWong99/memento/internal/summary"
)

// User-facing notices.
const (
	NoticeNothingCaptured = "Nothing captured."
	NoticeTooShort        = "That was too short to summarize."
	NoticeFailed          = "Sorry, I couldn't summarize that conversation. Please try again."
	NoticeProcessing      = "Processing..."
)

// Recap composes the spoken summary of a finished capture: who, contact,
// location, skills and next steps, each only when present.
func Recap(rec summary.Record) string {
	var parts []string
	if rec.Info != "" {
		parts = append(parts, sentence(rec.Info))
	}
	if rec.Contact != "" {
		parts = append(parts, sentence("Contact: "+rec.Contact))
	}
	if rec.Location != "" {
		parts = append(parts, sentence("Location: "+rec.Location))
	}
	if len(rec.Skills) > 0 {
		parts = append(parts, sentence("Skills: "+strings.Join(rec.Skills, ", ")))
	}
	if rec.Next != "" {
		parts = append(parts, sentence("Next steps: "+rec.Next))
	}
	if len(parts) == 0 {
		return "Conversation captured."
	}
	return "Captured. " + strings.Join(parts, " ")
}

// saveStatus is the inline note appended to a recap about the sinks.
func saveStatus(res sink.Result) string {
	switch {
	case res.Err() == nil:
		return ""
	case res.Saved():
		return " Saved with warnings."
	default:
		return " Warning: the notes could not be saved."
	}
}

// liveView renders the capture screen.
func liveView(speaking bool, text string) string {
	status := "Listening..."
	if speaking {
		status = "Speaking..."
	}
	return fmt.Sprintf("Recording - %s\n%d words, %d chars\n\n%s",
		status, len(strings.Fields(text)), len(text), text)
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsRune(".!?", rune(s[len(s)-1])) {
		return s
	}
	return s + "."
}
