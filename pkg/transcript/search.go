package transcript

import (
	"context"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/earshot-ai/earshot/pkg/vecstore"
)

// SearchOptions narrows a [Store.Search].
type SearchOptions struct {
	// After restricts results to segments with Start at or after this
	// instant. Zero means no lower bound.
	After time.Time

	// Before restricts results to segments with Start at or before this
	// instant. Zero means no upper bound.
	Before time.Time

	// Limit is the maximum number of matches, clamped to 1..100. Zero
	// means 10.
	Limit int
}

// windowed reports whether any time bound is set.
func (o SearchOptions) windowed() bool {
	return !o.After.IsZero() || !o.Before.IsZero()
}

// boundsNanos returns the inclusive Start window in Unix nanoseconds.
func (o SearchOptions) boundsNanos() (int64, int64) {
	after, before := int64(math.MinInt64), int64(math.MaxInt64)
	if !o.After.IsZero() {
		after = o.After.UnixNano()
	}
	if !o.Before.IsZero() {
		before = o.Before.UnixNano()
	}
	return after, before
}

// Search returns the user's segments nearest to the query vector,
// ascending by cosine distance. Only segments with a stored embedding
// are candidates.
//
// When a time window is set, the index is over-fetched so the window
// filter can still fill a page; if the filtered page comes up short, the
// search escalates once to a full-index rank.
func (s *Store) Search(ctx context.Context, userID string, queryVec []float32, opts SearchOptions) ([]Match, error) {
	limit := clampLimit(opts.Limit)
	idx, err := s.index(ctx, userID)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return nil, nil
	}

	topK := limit
	if opts.windowed() {
		topK = limit * 3
		if topK < 20 {
			topK = 20
		}
	}

	page, err := s.searchPage(ctx, userID, idx, queryVec, topK, opts, limit)
	if err != nil {
		return nil, err
	}
	if len(page) == limit || topK >= idx.Len() {
		return page, nil
	}
	return s.searchPage(ctx, userID, idx, queryVec, idx.Len(), opts, limit)
}

// searchPage ranks topK candidates, materializes their rows, and applies
// the time window, keeping at most limit matches in distance order.
func (s *Store) searchPage(ctx context.Context, userID string, idx *vecstore.HNSW, queryVec []float32, topK int, opts SearchOptions, limit int) ([]Match, error) {
	matches, err := idx.Search(queryVec, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	want := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		want[m.ID] = struct{}{}
	}
	segs, err := s.fetchByID(ctx, userID, want)
	if err != nil {
		return nil, err
	}

	afterNs, beforeNs := opts.boundsNanos()
	page := make([]Match, 0, limit)
	for _, m := range matches {
		seg, ok := segs[m.ID]
		if !ok {
			continue
		}
		if seg.Start < afterNs || seg.Start > beforeNs {
			continue
		}
		page = append(page, Match{Segment: seg, Distance: m.Distance})
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

// fetchByID materializes segment rows for a set of IDs in one scan over
// the user's rows. The row key ends with the segment ID, so non-matches
// are skipped without decoding.
func (s *Store) fetchByID(ctx context.Context, userID string, ids map[string]struct{}) (map[string]Segment, error) {
	segs := make(map[string]Segment, len(ids))
	for entry, err := range s.kv.List(ctx, segPrefix(userID)) {
		if err != nil {
			return nil, err
		}
		id := entry.Key[len(entry.Key)-1]
		if _, ok := ids[id]; !ok {
			continue
		}
		var seg Segment
		if err := msgpack.Unmarshal(entry.Value, &seg); err != nil {
			continue
		}
		segs[id] = seg
		if len(segs) == len(ids) {
			break
		}
	}
	return segs, nil
}
