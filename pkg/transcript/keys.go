package transcript

import (
	"fmt"

	"github.com/earshot-ai/earshot/pkg/kv"
)

// KV key layout for the transcript package.
//
//	seg:{user}:{start_ns_padded}:{seg_id} → msgpack Segment
//	last:{user}                           → msgpack Segment (latest by End)
//	emb:{user}:{seg_id}                   → msgpack []float32
//
// Start nanoseconds are zero-padded to a fixed width so lexicographic
// key order equals chronological order; a reverse scan over seg:{user}
// therefore yields newest-first by Start. The last:{user} row tracks the
// segment with the greatest End and drives session resolution.

// nanoWidth is the digit count of the padded timestamp key part, wide
// enough for any non-negative int64.
const nanoWidth = 19

// padNanos formats Unix nanoseconds for use in a time-ordered key.
func padNanos(ns int64) string {
	return fmt.Sprintf("%0*d", nanoWidth, ns)
}

// segKey builds the row key for a segment.
func segKey(userID string, startNs int64, id string) kv.Key {
	return kv.Key{"seg", userID, padNanos(startNs), id}
}

// segPrefix returns the prefix for scanning all of a user's segments.
func segPrefix(userID string) kv.Key {
	return kv.Key{"seg", userID}
}

// lastKey builds the key of the user's most recent segment by End.
func lastKey(userID string) kv.Key {
	return kv.Key{"last", userID}
}

// embKey builds the row key for a segment's embedding vector.
func embKey(userID, segID string) kv.Key {
	return kv.Key{"emb", userID, segID}
}

// embPrefix returns the prefix for scanning all of a user's embeddings.
func embPrefix(userID string) kv.Key {
	return kv.Key{"emb", userID}
}
