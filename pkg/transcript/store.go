package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/earshot-ai/earshot/pkg/embed"
	"github.com/earshot-ai/earshot/pkg/kv"
	"github.com/earshot-ai/earshot/pkg/lazy"
	"github.com/earshot-ai/earshot/pkg/storage"
	"github.com/earshot-ai/earshot/pkg/vecstore"
)

// StoreConfig configures a new [Store].
type StoreConfig struct {
	// KV is the row store for segments and embeddings. Required.
	KV kv.Store

	// Embedder produces the vectors behind semantic search. Required.
	Embedder embed.Embedder

	// Snapshots persists vector-index snapshots across restarts.
	// Optional: if nil, indexes are rebuilt from embedding rows on the
	// first search after every start.
	Snapshots storage.Store

	// Logger receives best-effort failure diagnostics. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Store persists transcript segments and serves list and semantic-search
// queries over them. Safe for concurrent use.
type Store struct {
	kv        kv.Store
	embedder  embed.Embedder
	snapshots storage.Store
	log       *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	indexes map[string]*lazy.Value[*vecstore.HNSW]
}

// NewStore creates a Store from cfg.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.KV == nil {
		return nil, errors.New("transcript: StoreConfig.KV is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("transcript: StoreConfig.Embedder is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		kv:        cfg.KV,
		embedder:  cfg.Embedder,
		snapshots: cfg.Snapshots,
		log:       log,
		now:       now,
		indexes:   make(map[string]*lazy.Value[*vecstore.HNSW]),
	}, nil
}

// Append persists a segment and then attaches its embedding best-effort.
//
// The segment ID and creation time are assigned here; coordinates are
// rounded to six decimals. Empty or whitespace-only text is rejected
// with [ErrEmptyText]. The returned segment is the stored row; the
// [EmbedResult] reports whether the embedding step succeeded, which
// never affects the error return.
func (s *Store) Append(ctx context.Context, seg Segment) (Segment, EmbedResult, error) {
	seg.Text = strings.TrimSpace(seg.Text)
	if seg.Text == "" {
		return Segment{}, EmbedResult{}, ErrEmptyText
	}
	if seg.UserID == "" {
		return Segment{}, EmbedResult{}, errors.New("transcript: missing user id")
	}
	if seg.SessionID == "" {
		return Segment{}, EmbedResult{}, errors.New("transcript: missing session id")
	}
	if seg.End < seg.Start {
		return Segment{}, EmbedResult{}, fmt.Errorf("transcript: segment ends %v before it starts", nanoTime(seg.End))
	}
	if seg.Speaker == "" {
		seg.Speaker = SpeakerPrimary
	}
	seg.ID = uuid.NewString()
	seg.CreatedAt = s.now().UTC().UnixNano()
	if seg.Latitude != nil {
		seg.Latitude = round6(*seg.Latitude)
	}
	if seg.Longitude != nil {
		seg.Longitude = round6(*seg.Longitude)
	}

	row, err := msgpack.Marshal(seg)
	if err != nil {
		return Segment{}, EmbedResult{}, err
	}

	// The last:{user} row tracks the greatest End seen, so a late
	// out-of-order chunk must not regress it.
	updateLast := true
	if data, err := s.kv.Get(ctx, lastKey(seg.UserID)); err == nil {
		var prev Segment
		if err := msgpack.Unmarshal(data, &prev); err == nil && seg.End < prev.End {
			updateLast = false
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		return Segment{}, EmbedResult{}, err
	}

	entries := []kv.Entry{{Key: segKey(seg.UserID, seg.Start, seg.ID), Value: row}}
	if updateLast {
		entries = append(entries, kv.Entry{Key: lastKey(seg.UserID), Value: row})
	}
	if err := s.kv.BatchSet(ctx, entries); err != nil {
		return Segment{}, EmbedResult{}, err
	}

	res := s.attachEmbedding(ctx, seg)
	if res.Err != nil {
		s.log.Warn("embedding attachment failed",
			"user", seg.UserID, "segment", seg.ID, "error", res.Err)
	}
	return seg, res, nil
}

// attachEmbedding embeds the prepared segment text, stores the vector
// row, and mirrors it into the user's index.
func (s *Store) attachEmbedding(ctx context.Context, seg Segment) EmbedResult {
	vec, err := s.embedder.Embed(ctx, embedText(seg))
	if err != nil {
		return EmbedResult{Err: err}
	}
	data, err := msgpack.Marshal(vec)
	if err != nil {
		return EmbedResult{Err: err}
	}
	if err := s.kv.Set(ctx, embKey(seg.UserID, seg.ID), data); err != nil {
		return EmbedResult{Err: err}
	}
	idx, err := s.index(ctx, seg.UserID)
	if err != nil {
		return EmbedResult{Err: fmt.Errorf("index: %w", err)}
	}
	if err := idx.Insert(seg.ID, vec); err != nil {
		return EmbedResult{Err: fmt.Errorf("index: %w", err)}
	}
	return EmbedResult{Attached: true}
}

// ListOptions selects the page returned by [Store.List].
type ListOptions struct {
	// SessionID restricts the listing to one session. Empty means all.
	SessionID string

	// Limit is the page size, clamped to 1..100. Zero means 10.
	Limit int

	// Offset is the number of matching rows to skip.
	Offset int
}

// List returns a page of the user's segments, newest first by Start,
// along with the total number of rows matching the same session filter.
func (s *Store) List(ctx context.Context, userID string, opts ListOptions) ([]Segment, int, error) {
	limit := clampLimit(opts.Limit)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		page  []Segment
		total int
	)
	for entry, err := range s.kv.Reverse(ctx, segPrefix(userID)) {
		if err != nil {
			return nil, 0, err
		}
		var seg Segment
		if err := msgpack.Unmarshal(entry.Value, &seg); err != nil {
			continue
		}
		if opts.SessionID != "" && seg.SessionID != opts.SessionID {
			continue
		}
		if total >= offset && len(page) < limit {
			page = append(page, seg)
		}
		total++
	}
	return page, total, nil
}

// Ping verifies the row store is reachable. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.kv.Get(ctx, kv.Key{"meta", "ping"})
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	return err
}

// Close snapshots every built index. It does not close the underlying
// stores, which belong to the caller.
func (s *Store) Close(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	s.mu.Lock()
	built := maps.Clone(s.indexes)
	s.mu.Unlock()

	var errs []error
	for userID, v := range built {
		if v.State() != lazy.StateReady {
			continue
		}
		idx, err := v.Get(ctx)
		if err != nil {
			continue
		}
		if err := s.saveSnapshot(ctx, userID, idx); err != nil {
			errs = append(errs, fmt.Errorf("snapshot %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

// clampLimit normalizes a page size to 1..100, defaulting to 10.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 10
	case limit > 100:
		return 100
	default:
		return limit
	}
}

// round6 rounds a coordinate to six decimal places.
func round6(v float64) *float64 {
	r := math.Round(v*1e6) / 1e6
	return &r
}

// embedText formats a segment for embedding. The speaker, time of day,
// date, and place ride along with the text so that "what did Sam say
// yesterday morning at the depot" embeds near the right rows.
func embedText(seg Segment) string {
	t := seg.StartTime()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (%s, %s", seg.SpeakerName, seg.Text, dayBucket(t.Hour()), t.Format("January 2, 2006"))
	if seg.Location != "" {
		b.WriteString(", ")
		b.WriteString(seg.Location)
	}
	b.WriteString(")")
	return b.String()
}

// dayBucket names the time of day for an hour on the 24-hour clock.
func dayBucket(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}
