package voiceprint

import (
	"context"
	"fmt"

	"github.com/earshot-ai/earshot/pkg/lazy"
)

// LazyModel defers construction of a speaker model until the first
// chunk needs it. Initialization is single-flight: under concurrent
// first use, one attempt runs and every other caller waits on it. A
// failed attempt is retried by the next caller, so a model server that
// was down at process start does not stay unreachable forever.
type LazyModel struct {
	inner *lazy.Value[Model]
}

var _ Model = (*LazyModel)(nil)

// NewLazyModel wraps init as a lazily constructed [Model].
func NewLazyModel(init func(ctx context.Context) (Model, error)) *LazyModel {
	return &LazyModel{inner: lazy.New(init)}
}

// Embed initializes the model if needed and extracts the embedding.
func (m *LazyModel) Embed(ctx context.Context, samples []int16) ([]float32, error) {
	model, err := m.inner.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}
	return model.Embed(ctx, samples)
}

// State returns the initialization state of the underlying handle.
func (m *LazyModel) State() lazy.State {
	return m.inner.State()
}
