package voiceprint

import (
	"context"
	"fmt"
	"time"

	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/wav"
)

// Decision is the gate outcome for one chunk.
type Decision struct {
	// Accepted reports whether the chunk belongs to the enrolled speaker.
	Accepted bool

	// Similarity is the clamped cosine similarity between the chunk's
	// speaker embedding and the enrolled voiceprint, in [0, 1].
	Similarity float64
}

// Gate validates capture audio and attributes it to the enrolled speaker.
//
// The gate itself is stateless; persistence decisions belong to the
// caller. A rejected chunk carries no side effects here at all, which is
// what makes the discard a real privacy boundary.
type Gate struct {
	model     Model
	threshold float64
}

// NewGate creates a gate using the given speaker model. A threshold of 0
// or less selects [DefaultThreshold].
func NewGate(model Model, threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{model: model, threshold: threshold}
}

// Threshold returns the acceptance threshold in use.
func (g *Gate) Threshold() float64 { return g.threshold }

// Extract validates the WAV container and duration window, normalizes the
// audio, and returns its speaker embedding. Used at enrollment, where
// there is no voiceprint to compare against yet.
func (g *Gate) Extract(ctx context.Context, wavBytes []byte, win Window) ([]float32, error) {
	decoded, err := wav.Decode(wavBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudio, err)
	}
	if d := decoded.Duration(); !win.Contains(d) {
		return nil, fmt.Errorf("%w: duration %s outside %s to %s window",
			ErrAudio, d.Round(time.Millisecond), win.Min, win.Max)
	}

	samples, err := audio.Normalize(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudio, err)
	}

	embedding, err := g.model.Embed(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrModel)
	}
	return embedding, nil
}

// Verify gates one capture chunk against the enrolled voiceprint.
//
// It returns a [Decision] rather than an error for the reject case:
// rejection is an expected outcome of continuous capture, not a failure.
// Errors are reserved for audio that cannot be evaluated at all and for
// backend failures.
func (g *Gate) Verify(ctx context.Context, wavBytes []byte, enrolled []float32, win Window) (Decision, error) {
	if len(enrolled) == 0 {
		return Decision{}, ErrNotEnrolled
	}
	embedding, err := g.Extract(ctx, wavBytes, win)
	if err != nil {
		return Decision{}, err
	}
	sim := Similarity(embedding, enrolled)
	return Decision{Accepted: sim >= g.threshold, Similarity: sim}, nil
}
