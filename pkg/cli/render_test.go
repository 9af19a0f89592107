package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/earshot-ai/earshot/pkg/client"
	"github.com/earshot-ai/earshot/pkg/isotime"
)

func testSegment(session, speaker, text string, start time.Time, secs int) client.Segment {
	return client.Segment{
		ID:          "seg-" + speaker,
		SessionID:   session,
		Speaker:     "primary",
		SpeakerName: speaker,
		Text:        text,
		Start:       isotime.At(start),
		End:         isotime.At(start.Add(time.Duration(secs) * time.Second)),
	}
}

func TestRenderSegment(t *testing.T) {
	st := NewStyles(DefaultTheme)
	start := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	seg := testSegment("sess-1", "Amy", "we should plant tomatoes", start, 12)
	seg.Location = "Maple Community Garden"

	out := RenderSegment(st, &seg)

	for _, want := range []string{
		"2025-01-15T10:30:00",
		"Amy",
		"Maple Community Garden",
		"12.0s",
		"we should plant tomatoes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSegment_NoLocation(t *testing.T) {
	st := NewStyles(DefaultTheme)
	start := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	seg := testSegment("sess-1", "Amy", "hello", start, 3)
	out := RenderSegment(st, &seg)

	if strings.Contains(out, "·") {
		t.Errorf("output should have no location separator:\n%s", out)
	}
	if !strings.Contains(out, "3.0s") {
		t.Errorf("output missing duration:\n%s", out)
	}
}

func TestRenderTranscripts_GroupsBySession(t *testing.T) {
	st := NewStyles(DefaultTheme)
	start := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	page := &client.TranscriptPage{
		Transcripts: []client.Segment{
			testSegment("sess-2", "Amy", "newer segment", start.Add(time.Hour), 5),
			testSegment("sess-1", "Amy", "older segment", start, 5),
			testSegment("sess-1", "Ben", "oldest segment", start.Add(-time.Minute), 5),
		},
		TotalCount: 7,
	}

	out := RenderTranscripts(st, page)

	if got := strings.Count(out, "session sess-1"); got != 1 {
		t.Errorf("session sess-1 header count = %d, want 1", got)
	}
	if got := strings.Count(out, "session sess-2"); got != 1 {
		t.Errorf("session sess-2 header count = %d, want 1", got)
	}
	if !strings.Contains(out, "3 of 7 transcripts") {
		t.Errorf("output missing count footer:\n%s", out)
	}

	// Newest-first order is preserved.
	if strings.Index(out, "newer segment") > strings.Index(out, "older segment") {
		t.Errorf("segments out of order:\n%s", out)
	}
}

func TestRenderTranscripts_Empty(t *testing.T) {
	st := NewStyles(DefaultTheme)
	out := RenderTranscripts(st, &client.TranscriptPage{})
	if !strings.Contains(out, "no transcripts") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderCitation(t *testing.T) {
	st := NewStyles(DefaultTheme)

	c := &client.Citation{
		TranscriptID: "seg-1",
		SpeakerName:  "Amy",
		Timestamp:    "2025-01-15T10:30:00",
		Location:     "Maple Community Garden",
		Snippet:      "we should plant tomatoes this weekend",
	}

	out := RenderCitation(st, 1, c)
	for _, want := range []string{"[1]", "Amy", "2025-01-15T10:30:00", "Maple Community Garden", "plant tomatoes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCitation_TruncatesLongSnippet(t *testing.T) {
	st := NewStyles(DefaultTheme)

	c := &client.Citation{
		SpeakerName: "Amy",
		Timestamp:   "2025-01-15T10:30:00",
		Snippet:     strings.Repeat("tomato ", 40),
	}

	out := RenderCitation(st, 2, c)
	if !strings.Contains(out, "…") {
		t.Errorf("long snippet should be truncated:\n%s", out)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"héllo", 2, "hé"},
	}

	for _, tt := range tests {
		if got := truncateString(tt.s, tt.width); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}
