// Package voiceprint decides whether a capture chunk was spoken by an
// enrolled user.
//
// Continuous capture records everyone in earshot. The only audio allowed
// to leave a durable trace is audio confirmed to belong to the consenting
// speaker, so every chunk passes through [Gate] before transcription: the
// chunk's speaker embedding is compared against the user's enrolled
// voiceprint, and a chunk below the acceptance threshold is discarded
// without persisting anything derived from its content.
package voiceprint

import (
	"context"
	"errors"
	"math"
	"time"
)

// DefaultThreshold is the minimum cosine similarity at which a chunk is
// attributed to the enrolled speaker.
const DefaultThreshold = 0.65

var (
	// ErrAudio marks audio the gate cannot work with: a malformed
	// container, an unsupported codec, or a duration outside the allowed
	// window.
	ErrAudio = errors.New("voiceprint: unacceptable audio")

	// ErrNotEnrolled is returned when the user has no voiceprint to
	// compare against.
	ErrNotEnrolled = errors.New("voiceprint: user has no enrolled voiceprint")

	// ErrModel wraps failures of the speaker-embedding backend.
	ErrModel = errors.New("voiceprint: speaker model unavailable")
)

// Window bounds the duration of an acceptable chunk.
type Window struct {
	Min time.Duration
	Max time.Duration
}

// Enrollment needs enough sustained speech for a stable voiceprint;
// capture chunks only need to be plausible speech units.
var (
	EnrollmentWindow = Window{Min: 15 * time.Second, Max: 30 * time.Second}
	CaptureWindow    = Window{Min: 1 * time.Second, Max: 60 * time.Second}
)

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Duration) bool {
	return d >= w.Min && d <= w.Max
}

// Model extracts speaker embedding vectors from audio.
//
// The input is canonical PCM as produced by the audio package: 16 kHz,
// mono, 16-bit samples. The output is a dense float32 vector of a fixed
// dimension chosen by the backend.
//
// Implementations must be safe for concurrent use.
type Model interface {
	Embed(ctx context.Context, samples []int16) ([]float32, error)
}

// Similarity computes the cosine similarity of two speaker embeddings,
// clamped to [0, 1]. Same-speaker embeddings do not correlate negatively
// in practice, so negative cosine collapses to 0 instead of leaking sign
// confusion into threshold comparisons. Mismatched or zero-norm vectors
// also yield 0.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
