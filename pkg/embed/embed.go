// Package embed converts text into dense float32 vectors for semantic
// retrieval over transcript segments.
//
// Two remote implementations are provided:
//
//   - [OpenAI] — text-embedding-3-small / text-embedding-3-large
//   - [Gemini] — Google gemini-embedding models
//
// Both accept a requested output dimensionality so the vectors match the
// segment index. Query-time embedding failures are fatal to the request;
// capture-time failures are swallowed by the store and retried out of
// band, so implementations must keep errors inspectable rather than
// exiting.
package embed

import (
	"context"
	"errors"
	"net/http"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	// Implementations may split large batches into smaller API calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// ErrEmptyInput is returned when there is no text to embed.
var ErrEmptyInput = errors.New("embed: empty input")

// config holds shared configuration for embedder implementations.
type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the desired output vector dimensionality. It must
// match the dimension of the vector index the embeddings feed.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}
