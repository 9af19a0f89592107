package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/earshot-ai/earshot/pkg/kv"
)

// SessionTracker assigns session IDs to incoming chunks by inspecting
// the user's most recent segment.
//
// Resolution is one read with no locking, so two out-of-order chunks
// racing around a boundary may land in either session. That ambiguity is
// accepted; sessions are a grouping aid, not an integrity boundary.
type SessionTracker struct {
	store kv.Store
	gap   time.Duration
}

// NewSessionTracker creates a tracker over the same row store the
// segments live in. A non-positive gap selects [DefaultSessionGap].
func NewSessionTracker(store kv.Store, gap time.Duration) *SessionTracker {
	if gap <= 0 {
		gap = DefaultSessionGap
	}
	return &SessionTracker{store: store, gap: gap}
}

// Resolve returns the session ID for a chunk starting at start, and
// whether that session was newly minted.
//
// A new session is minted when the user has no prior segment or when
// start trails the last segment's End by more than the gap; a gap of
// exactly the threshold still shares the session.
func (t *SessionTracker) Resolve(ctx context.Context, userID string, start time.Time) (string, bool, error) {
	data, err := t.store.Get(ctx, lastKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return uuid.NewString(), true, nil
	}
	if err != nil {
		return "", false, err
	}

	var last Segment
	if err := msgpack.Unmarshal(data, &last); err != nil {
		return "", false, fmt.Errorf("transcript: decode last segment: %w", err)
	}
	if start.UnixNano()-last.End > t.gap.Nanoseconds() {
		return uuid.NewString(), true, nil
	}
	return last.SessionID, false, nil
}
