package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/earshot-ai/earshot/pkg/kv"
	"github.com/earshot-ai/earshot/pkg/storage"
)

// queueEmbedder hands out pre-seeded vectors in call order, for tests
// that need exact control over every stored vector.
type queueEmbedder struct {
	dim   int
	queue [][]float32
}

func (e *queueEmbedder) Embed(context.Context, string) ([]float32, error) {
	if len(e.queue) == 0 {
		return nil, errors.New("queue empty")
	}
	v := e.queue[0]
	e.queue = e.queue[1:]
	return v, nil
}

func (e *queueEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		v, err := e.Embed(ctx, "")
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (e *queueEmbedder) Dimension() int { return e.dim }

func TestSearchNearestSelf(t *testing.T) {
	s := newTestStore(t, newStubEmbedder())
	ctx := context.Background()

	panel := mustAppend(t, s, testSegment("u1", "sess1", "solar panel estimate", testNow))
	mustAppend(t, s, testSegment("u1", "sess1", "coffee with Ana", testNow.Add(time.Minute)))
	mustAppend(t, s, testSegment("u1", "sess1", "junction box rewire", testNow.Add(2*time.Minute)))

	matches, err := s.Search(ctx, "u1", []float32{1, 0, 0, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("Search returned no matches")
	}
	if matches[0].Segment.ID != panel.ID {
		t.Errorf("nearest = %q, want the panel segment", matches[0].Segment.Text)
	}
	if matches[0].Distance > 1e-6 {
		t.Errorf("self distance = %v, want ~0", matches[0].Distance)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Errorf("matches not in ascending distance order at %d", i)
		}
	}
}

func TestSearchEmbeddedOnly(t *testing.T) {
	emb := newStubEmbedder()
	s := newTestStore(t, emb)
	ctx := context.Background()

	mustAppend(t, s, testSegment("u1", "sess1", "solar panel estimate", testNow))

	emb.fail = errors.New("backend down")
	if _, res, err := s.Append(ctx, testSegment("u1", "sess1", "coffee with Ana", testNow.Add(time.Minute))); err != nil || res.Attached {
		t.Fatalf("Append = (%v, attached %v), want stored without embedding", err, res.Attached)
	}
	emb.fail = nil

	matches, err := s.Search(ctx, "u1", []float32{0, 1, 0, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, m := range matches {
		if m.Segment.Text == "coffee with Ana" {
			t.Error("unembedded segment appeared in search results")
		}
	}
}

func TestSearchWindowFilter(t *testing.T) {
	s := newTestStore(t, newStubEmbedder())
	ctx := context.Background()

	dayStart := time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC)
	dayEnd := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

	before := mustAppend(t, s, testSegment("u1", "s", "panel before window", dayStart.Add(-time.Hour)))
	atStart := mustAppend(t, s, testSegment("u1", "s", "panel at window start", dayStart))
	inside := mustAppend(t, s, testSegment("u1", "s", "panel inside window", dayStart.Add(10*time.Hour)))
	atEnd := mustAppend(t, s, testSegment("u1", "s", "panel at window end", dayEnd))
	after := mustAppend(t, s, testSegment("u1", "s", "panel after window", dayEnd.Add(time.Hour)))

	matches, err := s.Search(ctx, "u1", []float32{1, 0, 0, 0}, SearchOptions{After: dayStart, Before: dayEnd})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got := make(map[string]bool, len(matches))
	for _, m := range matches {
		got[m.Segment.ID] = true
	}
	for _, want := range []Segment{atStart, inside, atEnd} {
		if !got[want.ID] {
			t.Errorf("window dropped %q", want.Text)
		}
	}
	for _, out := range []Segment{before, after} {
		if got[out.ID] {
			t.Errorf("window leaked %q", out.Text)
		}
	}
}

func TestSearchWindowEscalatesToFullRank(t *testing.T) {
	// 24 near vectors land today; the lone in-window vector is orthogonal
	// to the query, so it is ranked past the over-fetched page and only a
	// full-index rank can surface it.
	emb := &queueEmbedder{dim: 4}
	for range 24 {
		emb.queue = append(emb.queue, []float32{1, 0, 0, 0})
	}
	emb.queue = append(emb.queue, []float32{0, 1, 0, 0})

	s := newTestStore(t, emb)
	ctx := context.Background()

	today := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	lastWeek := today.AddDate(0, 0, -7)

	for i := range 24 {
		mustAppend(t, s, testSegment("u1", "s", "note", today.Add(time.Duration(i)*time.Minute)))
	}
	target := mustAppend(t, s, testSegment("u1", "s", "note", lastWeek))

	matches, err := s.Search(ctx, "u1", []float32{1, 0, 0, 0}, SearchOptions{
		After:  lastWeek.Add(-time.Hour),
		Before: lastWeek.Add(time.Hour),
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Segment.ID != target.ID {
		t.Fatalf("escalated search = %v, want the last-week segment", matches)
	}
}

func TestSearchLimit(t *testing.T) {
	s := newTestStore(t, newStubEmbedder())
	ctx := context.Background()

	for i := range 5 {
		mustAppend(t, s, testSegment("u1", "s", "note", testNow.Add(time.Duration(i)*time.Minute)))
	}

	matches, err := s.Search(ctx, "u1", []float32{0, 0, 0, 1}, SearchOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Search returned %d matches, want 2", len(matches))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	s := newTestStore(t, newStubEmbedder())

	matches, err := s.Search(context.Background(), "u1", []float32{1, 0, 0, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("empty index returned %d matches", len(matches))
	}
}

func TestSearchUsersAreIsolated(t *testing.T) {
	s := newTestStore(t, newStubEmbedder())
	ctx := context.Background()

	mustAppend(t, s, testSegment("u1", "s", "solar panel estimate", testNow))

	matches, err := s.Search(ctx, "u2", []float32{1, 0, 0, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Error("u2 search returned u1 segments")
	}
}

func TestBackfillEmbeddings(t *testing.T) {
	emb := newStubEmbedder()
	emb.fail = errors.New("backend down")
	s := newTestStore(t, emb)
	ctx := context.Background()

	for i := range 3 {
		seg := testSegment("u1", "s", "solar panel estimate", testNow.Add(time.Duration(i)*time.Minute))
		if _, res, err := s.Append(ctx, seg); err != nil || res.Attached {
			t.Fatalf("Append = (%v, attached %v)", err, res.Attached)
		}
	}

	emb.fail = nil
	attached, err := s.BackfillEmbeddings(ctx, "u1")
	if err != nil {
		t.Fatalf("BackfillEmbeddings: %v", err)
	}
	if attached != 3 {
		t.Errorf("attached = %d, want 3", attached)
	}

	matches, err := s.Search(ctx, "u1", []float32{1, 0, 0, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("Search after backfill = %d matches, want 3", len(matches))
	}

	attached, err = s.BackfillEmbeddings(ctx, "u1")
	if err != nil {
		t.Fatalf("BackfillEmbeddings: %v", err)
	}
	if attached != 0 {
		t.Errorf("second backfill attached %d, want 0", attached)
	}
}

func TestSnapshotRoundTripAcrossStores(t *testing.T) {
	blobs, err := storage.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	rows := kv.NewMemory(nil)
	ctx := context.Background()

	first, err := NewStore(StoreConfig{
		KV:        rows,
		Embedder:  newStubEmbedder(),
		Snapshots: blobs,
		Now:       func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	panel := mustAppend(t, first, testSegment("u1", "s", "solar panel estimate", testNow))
	mustAppend(t, first, testSegment("u1", "s", "coffee with Ana", testNow.Add(time.Minute)))
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ok, err := blobs.Exists(ctx, snapshotName("u1"))
	if err != nil || !ok {
		t.Fatalf("snapshot missing after Close: ok=%v err=%v", ok, err)
	}

	second, err := NewStore(StoreConfig{
		KV:        rows,
		Embedder:  newStubEmbedder(),
		Snapshots: blobs,
		Now:       func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	matches, err := second.Search(ctx, "u1", []float32{1, 0, 0, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) == 0 || matches[0].Segment.ID != panel.ID {
		t.Fatalf("restored index lost the panel segment: %v", matches)
	}
}
