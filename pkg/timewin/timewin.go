// Package timewin extracts time windows from natural-language queries.
//
// "what did I discuss yesterday" should search yesterday's transcripts
// in the user's own day, not the server's. The parser computes window
// bounds on the wall clock of the caller-supplied zone and then converts
// them to canonical UTC instants for the store.
//
// Matching is a lowercased substring scan over an ordered rule table;
// the first matching rule wins.
package timewin

import (
	"log/slog"
	"strings"
	"time"
)

// Window is a half-open-by-convention time range in the canonical clock.
// Both bounds are UTC; retrieval treats them as inclusive on Start.
type Window struct {
	Start time.Time
	End   time.Time
}

// rule pairs a query phrase with the window it denotes. The func
// receives "now" on the caller's wall clock and returns local bounds.
type rule struct {
	pattern string
	window  func(now time.Time) Window
}

// Parser recognizes relative time phrases in chat queries.
type Parser struct {
	now   func() time.Time
	rules []rule
}

// Option configures a Parser.
type Option func(*Parser)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// NewParser returns a Parser with the built-in rule table.
func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now, rules: defaultRules()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// defaultRules is the ordered phrase table. Completed periods end at the
// boundary of the following period; running periods end at now.
func defaultRules() []rule {
	return []rule{
		{"today", func(now time.Time) Window {
			return Window{dayStart(now), now}
		}},
		{"yesterday", func(now time.Time) Window {
			ds := dayStart(now)
			return Window{ds.AddDate(0, 0, -1), ds}
		}},
		{"this week", func(now time.Time) Window {
			return Window{weekStart(now), now}
		}},
		{"last week", func(now time.Time) Window {
			ws := weekStart(now)
			return Window{ws.AddDate(0, 0, -7), ws}
		}},
		{"this month", func(now time.Time) Window {
			return Window{monthStart(now), now}
		}},
		{"last month", func(now time.Time) Window {
			ms := monthStart(now)
			return Window{ms.AddDate(0, -1, 0), ms}
		}},
	}
}

// Parse scans query for a time phrase interpreted on loc's wall clock.
// It returns the matched window in UTC, or false when the query names no
// recognized period. A nil loc means UTC.
func (p *Parser) Parse(query string, loc *time.Location) (Window, bool) {
	if loc == nil {
		loc = time.UTC
	}
	q := strings.ToLower(query)
	now := p.now().In(loc)

	for _, r := range p.rules {
		if !strings.Contains(q, r.pattern) {
			continue
		}
		w := r.window(now)
		return Window{Start: w.Start.UTC(), End: w.End.UTC()}, true
	}
	return Window{}, false
}

// LoadLocation resolves an IANA zone name, falling back to UTC when the
// name is empty or unrecognized. The fallback is logged, never an error:
// a bad client zone must not fail the enclosing request.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "zone", name)
		return time.UTC
	}
	return loc
}

// dayStart returns local midnight of now's calendar day.
func dayStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// weekStart returns local midnight of the Monday of now's week.
func weekStart(now time.Time) time.Time {
	sinceMonday := (int(now.Weekday()) + 6) % 7
	return dayStart(now).AddDate(0, 0, -sinceMonday)
}

// monthStart returns local midnight of the first of now's month.
func monthStart(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}
