package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/earshot-ai/earshot/pkg/embed"
	"github.com/earshot-ai/earshot/pkg/timewin"
	"github.com/earshot-ai/earshot/pkg/transcript"
)

// entryTimeLayout renders segment timestamps inside context entries,
// e.g. "January 05, 2025 at 09:30 AM".
const entryTimeLayout = "January 02, 2006 at 03:04 PM"

// Partial-entry truncation holds truncateMargin back from the budget
// and drops partials shorter than truncateFloor.
const (
	truncateMargin = 50
	truncateFloor  = 100
)

// Searcher is the slice of the transcript store retrieval needs.
type Searcher interface {
	Search(ctx context.Context, userID string, queryVec []float32, opts transcript.SearchOptions) ([]transcript.Match, error)
}

// BuilderConfig configures a new [ContextBuilder].
type BuilderConfig struct {
	// Store serves the semantic search. Required.
	Store Searcher

	// Embedder turns query text into vectors. Required.
	Embedder embed.Embedder

	// Times extracts explicit time windows from queries. Defaults to a
	// parser on the system clock.
	Times *timewin.Parser

	// Logger receives retrieval diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	// MaxTokens overrides the context budget. Defaults to 6000 tokens,
	// counted at four characters each.
	MaxTokens int
}

// ContextBuilder assembles the retrieval context for chat queries.
type ContextBuilder struct {
	store    Searcher
	embedder embed.Embedder
	times    *timewin.Parser
	log      *slog.Logger
	maxChars int
}

// NewContextBuilder creates a ContextBuilder from cfg.
func NewContextBuilder(cfg BuilderConfig) (*ContextBuilder, error) {
	if cfg.Store == nil {
		return nil, errors.New("rag: BuilderConfig.Store is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("rag: BuilderConfig.Embedder is required")
	}
	times := cfg.Times
	if times == nil {
		times = timewin.NewParser()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = maxContextTokens
	}
	return &ContextBuilder{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		times:    times,
		log:      log,
		maxChars: maxTokens * avgCharsPerToken,
	}, nil
}

// Context is the assembled retrieval result for one query.
type Context struct {
	// Text is the formatted context block, empty when nothing matched.
	Text string

	// Citations describe the top retrieved segments, at most five, in
	// similarity order.
	Citations []Citation
}

// Build retrieves and formats context for one query. The query is
// embedded and searched against the user's segments, restricted to an
// explicit time window when the query names one, resolved in loc (UTC
// when nil). An embedding failure returns an error matching
// [ErrEmbedQuery]; retrieval never degrades to an unfiltered answer.
func (b *ContextBuilder) Build(ctx context.Context, userID, query string, loc *time.Location) (Context, error) {
	opts := transcript.SearchOptions{Limit: searchLimit}
	win, windowed := b.times.Parse(query, loc)
	if windowed {
		opts.After, opts.Before = win.Start, win.End
	}

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrEmbedQuery, err)
	}

	matches, err := b.store.Search(ctx, userID, vec, opts)
	if err != nil {
		return Context{}, fmt.Errorf("rag: search transcripts: %w", err)
	}

	b.log.Info("retrieved chat context",
		"user", userID,
		"matches", len(matches),
		"windowed", windowed,
	)

	return Context{
		Text:      formatContext(matches, b.maxChars),
		Citations: citations(matches),
	}, nil
}

// formatContext renders matches most-similar first, separated by blank
// lines, within a byte budget. The first entry that would overflow the
// budget is cut to fit with a trailing ellipsis and ends the block, so
// a long top hit is never dropped in favor of a weaker one.
func formatContext(matches []transcript.Match, maxChars int) string {
	var parts []string
	total := 0
	for _, m := range matches {
		entry := formatEntry(m.Segment)
		if total+len(entry) > maxChars {
			if room := maxChars - total - truncateMargin; room > truncateFloor {
				parts = append(parts, cut(entry, room))
			}
			break
		}
		parts = append(parts, entry)
		total += len(entry) + 2
	}
	return strings.Join(parts, "\n\n")
}

// formatEntry renders one segment as
// "[January 05, 2025 at 09:30 AM, Denver Depot] Sam: text", dropping
// the location part when the segment has none.
func formatEntry(seg transcript.Segment) string {
	ts := seg.StartTime().Format(entryTimeLayout)
	if seg.Location != "" {
		return fmt.Sprintf("[%s, %s] %s: %s", ts, seg.Location, seg.SpeakerName, seg.Text)
	}
	return fmt.Sprintf("[%s] %s: %s", ts, seg.SpeakerName, seg.Text)
}

// citations maps the top matches to citation metadata.
func citations(matches []transcript.Match) []Citation {
	if len(matches) > maxCitations {
		matches = matches[:maxCitations]
	}
	cites := make([]Citation, 0, len(matches))
	for _, m := range matches {
		cites = append(cites, Citation{
			TranscriptID: m.Segment.ID,
			SpeakerName:  m.Segment.SpeakerName,
			Timestamp:    m.Segment.StartTime().Format(time.RFC3339),
			Location:     m.Segment.Location,
			Snippet:      cut(m.Segment.Text, snippetLen),
		})
	}
	return cites
}

// cut shortens s to at most n bytes without splitting a rune, appending
// an ellipsis when anything was removed.
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
