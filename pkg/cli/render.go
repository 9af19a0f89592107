package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/earshot-ai/earshot/pkg/client"
)

// Theme defines the color scheme for terminal rendering.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/metadata text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// RenderRule renders a horizontal separator line.
func RenderRule(st Styles, width int) string {
	if width <= 0 {
		width = 40
	}
	return st.Border.Render(strings.Repeat("─", width))
}

// RenderSegment renders one transcript row: a highlighted timestamp
// line with speaker and metadata, then the indented text.
func RenderSegment(st Styles, seg *client.Segment) string {
	head := st.Label.Render(seg.Start.String()) + "  " + seg.SpeakerName

	ms := int(seg.End.Sub(seg.Start).Milliseconds())
	meta := FormatDuration(ms)
	if seg.Location != "" {
		meta = seg.Location + " · " + meta
	}
	head += "  " + st.Help.Render(meta)

	return head + "\n    " + seg.Text
}

// RenderTranscripts renders a transcript page grouped by session,
// preserving the server's newest-first order.
func RenderTranscripts(st Styles, page *client.TranscriptPage) string {
	if len(page.Transcripts) == 0 {
		return st.Help.Render("no transcripts")
	}

	var b strings.Builder
	session := ""
	for i := range page.Transcripts {
		seg := &page.Transcripts[i]
		if seg.SessionID != session {
			session = seg.SessionID
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(st.Title.Render("session " + session))
			b.WriteString("\n")
		}
		b.WriteString(RenderSegment(st, seg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s", st.Help.Render(fmt.Sprintf("%d of %d transcripts", len(page.Transcripts), page.TotalCount)))
	return b.String()
}

// RenderCitation renders one numbered citation line for a streamed
// answer. The snippet is truncated to keep citations single-glance.
func RenderCitation(st Styles, n int, c *client.Citation) string {
	head := fmt.Sprintf("[%d] %s · %s", n, c.SpeakerName, c.Timestamp)
	if c.Location != "" {
		head += " · " + c.Location
	}

	snippet := c.Snippet
	const maxSnippet = 96
	if lipgloss.Width(snippet) > maxSnippet {
		snippet = truncateString(snippet, maxSnippet-1) + "…"
	}

	return st.Help.Render(head) + "\n" + st.Help.Render("    "+snippet)
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
