package transcript

import (
	"context"
	"errors"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/earshot-ai/earshot/pkg/kv"
	"github.com/earshot-ai/earshot/pkg/lazy"
	"github.com/earshot-ai/earshot/pkg/vecstore"
)

// hnswM is the graph connectivity of per-user indexes.
const hnswM = 16

// index returns the user's vector index, building it on first use.
// Concurrent callers for the same user share one build attempt; a failed
// build is retried by the next caller.
func (s *Store) index(ctx context.Context, userID string) (*vecstore.HNSW, error) {
	s.mu.Lock()
	v, ok := s.indexes[userID]
	if !ok {
		v = lazy.New(func(ctx context.Context) (*vecstore.HNSW, error) {
			return s.buildIndex(ctx, userID)
		})
		s.indexes[userID] = v
	}
	s.mu.Unlock()
	return v.Get(ctx)
}

// buildIndex restores the user's index from a snapshot when it still
// covers every stored embedding row, and rebuilds it from the rows
// otherwise. Embedding rows are append-only, so row count equality is a
// sound freshness check.
func (s *Store) buildIndex(ctx context.Context, userID string) (*vecstore.HNSW, error) {
	ids, vecs, err := s.loadVectors(ctx, userID)
	if err != nil {
		return nil, err
	}

	dim := s.embedder.Dimension()
	if h := s.loadSnapshot(ctx, userID); h != nil {
		if h.Len() == len(ids) && h.Options().Dim == dim {
			return h, nil
		}
		s.log.Info("vector index snapshot stale, rebuilding",
			"user", userID, "snapshot", h.Len(), "rows", len(ids))
	}

	h := vecstore.NewHNSW(vecstore.HNSWOptions{Dim: dim, M: hnswM})
	if err := h.BatchInsert(ids, vecs); err != nil {
		return nil, err
	}
	if err := s.saveSnapshot(ctx, userID, h); err != nil {
		s.log.Warn("vector index snapshot save failed", "user", userID, "error", err)
	}
	return h, nil
}

// loadVectors scans the user's embedding rows. Rows that fail to decode
// or whose dimension does not match the embedder are skipped.
func (s *Store) loadVectors(ctx context.Context, userID string) ([]string, [][]float32, error) {
	dim := s.embedder.Dimension()
	var (
		ids  []string
		vecs [][]float32
	)
	for entry, err := range s.kv.List(ctx, embPrefix(userID)) {
		if err != nil {
			return nil, nil, err
		}
		var vec []float32
		if err := msgpack.Unmarshal(entry.Value, &vec); err != nil || len(vec) != dim {
			continue
		}
		ids = append(ids, entry.Key[len(entry.Key)-1])
		vecs = append(vecs, vec)
	}
	return ids, vecs, nil
}

// loadSnapshot restores a saved index, or returns nil when no usable
// snapshot exists. Load failures are logged and treated as absent.
func (s *Store) loadSnapshot(ctx context.Context, userID string) *vecstore.HNSW {
	if s.snapshots == nil {
		return nil
	}
	r, err := s.snapshots.Open(ctx, snapshotName(userID))
	if err != nil {
		return nil
	}
	defer r.Close()
	h, err := vecstore.LoadHNSW(r)
	if err != nil {
		s.log.Warn("vector index snapshot unreadable", "user", userID, "error", err)
		return nil
	}
	return h
}

// saveSnapshot persists the index for the next process start. No-op
// without a snapshot store.
func (s *Store) saveSnapshot(ctx context.Context, userID string, h *vecstore.HNSW) error {
	if s.snapshots == nil {
		return nil
	}
	w, err := s.snapshots.Create(ctx, snapshotName(userID))
	if err != nil {
		return err
	}
	if err := h.Save(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func snapshotName(userID string) string {
	return "indexes/" + userID + ".hnsw"
}

// BackfillEmbeddings attempts to embed every segment that has no stored
// vector, returning the number attached. Per-segment embedding failures
// are logged and skipped; storage failures abort.
func (s *Store) BackfillEmbeddings(ctx context.Context, userID string) (int, error) {
	idx, err := s.index(ctx, userID)
	if err != nil {
		return 0, err
	}

	// Collect first: embedding is a network call and must not run inside
	// the row scan.
	var missing []Segment
	for entry, err := range s.kv.List(ctx, segPrefix(userID)) {
		if err != nil {
			return 0, err
		}
		var seg Segment
		if err := msgpack.Unmarshal(entry.Value, &seg); err != nil {
			continue
		}
		_, err = s.kv.Get(ctx, embKey(userID, seg.ID))
		if errors.Is(err, kv.ErrNotFound) {
			missing = append(missing, seg)
		} else if err != nil {
			return 0, err
		}
	}

	attached := 0
	for _, seg := range missing {
		vec, err := s.embedder.Embed(ctx, embedText(seg))
		if err != nil {
			s.log.Warn("backfill embedding failed",
				"user", userID, "segment", seg.ID, "error", err)
			continue
		}
		data, err := msgpack.Marshal(vec)
		if err != nil {
			return attached, err
		}
		if err := s.kv.Set(ctx, embKey(userID, seg.ID), data); err != nil {
			return attached, err
		}
		if err := idx.Insert(seg.ID, vec); err != nil {
			return attached, err
		}
		attached++
	}
	return attached, nil
}
