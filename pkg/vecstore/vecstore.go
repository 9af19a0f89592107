// Package vecstore provides nearest-neighbor search over dense float32
// vectors, backing the semantic-retrieval path of the transcript store.
//
// Two implementations of [Index] are included: [Flat], an exact brute-force
// index for tests and small collections, and [HNSW], a hierarchical
// navigable-small-world graph for production use. HNSW indexes can be
// snapshotted to and restored from a byte stream, so a per-user index
// survives restarts without re-embedding.
package vecstore

import (
	"errors"
	"fmt"
	"math"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("vecstore: index closed")

// Index is the interface for nearest-neighbor search over dense vectors.
//
// All implementations must be safe for concurrent use.
type Index interface {
	// Insert adds or replaces the vector with the given ID.
	Insert(id string, vector []float32) error

	// BatchInsert adds or replaces multiple vectors at once.
	// ids and vectors must have the same length.
	BatchInsert(ids []string, vectors [][]float32) error

	// Search returns the top-k nearest vectors to the query, ordered by
	// ascending distance (closest first).
	Search(query []float32, topK int) ([]Match, error)

	// Delete removes a vector by ID. No error if ID does not exist.
	Delete(id string) error

	// Len returns the number of vectors in the index.
	Len() int

	// Close releases resources held by the index.
	Close() error
}

// Match is a single result from a vector similarity search.
type Match struct {
	// ID is the identifier of the matched vector.
	ID string

	// Distance is the cosine distance between the query and the matched
	// vector, in [0, 2]. Lower values indicate higher similarity.
	Distance float32
}

// CosineDistance computes the cosine distance between two vectors:
// 1 - cos(a, b), in [0, 2] where 0 means identical direction and 2 means
// opposite direction. Mismatched dimensions and zero-norm vectors have no
// meaningful direction and yield the maximum distance.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 2
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to absorb floating point error.
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return float32(1 - cos)
}

// checkDim validates a vector against the index dimension.
func checkDim(vector []float32, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("vecstore: dimension mismatch: got %d, want %d", len(vector), dim)
	}
	return nil
}

// checkBatch validates paired id/vector slices.
func checkBatch(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("vecstore: batch length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	return nil
}
