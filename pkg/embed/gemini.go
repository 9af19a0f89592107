package embed

import (
	"context"
	"fmt"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// ModelGeminiEmbedding is the current Gemini embedding model.
const ModelGeminiEmbedding = "gemini-embedding-001"

const (
	geminiMaxBatch     = 100 // contents per request, API limit
	geminiDefaultDim   = 1536
	geminiDefaultModel = ModelGeminiEmbedding
)

// Gemini implements [Embedder] using the Google Gemini API. The model
// supports Matryoshka truncation, so the requested dimensionality is sent
// with every call and the returned vectors match the segment index.
type Gemini struct {
	client *genai.Client
	model  string
	dim    int
}

var _ Embedder = (*Gemini)(nil)

// NewGemini creates a Gemini embedder. WithBaseURL and WithHTTPClient are
// not used here; pass a configured client through the Gemini API key.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	cfg := config{
		model: geminiDefaultModel,
		dim:   geminiDefaultDim,
	}
	for _, o := range opts {
		o(&cfg)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  cfg.model,
		dim:    cfg.dim,
	}, nil
}

// Model returns the embedding model identifier.
func (g *Gemini) Model() string {
	return g.model
}

// Dimension returns the configured vector dimensionality.
func (g *Gemini) Dimension() int {
	return g.dim
}

// Embed returns the embedding for a single text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts. Batches over the API
// limit are split into several calls.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += geminiMaxBatch {
		hi := min(lo+geminiMaxBatch, len(texts))

		contents := make([]*genai.Content, hi-lo)
		for i, t := range texts[lo:hi] {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}
		resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.dim)),
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", lo, hi, geminiErr(err))
		}

		vecs, err := geminiVectors(resp, hi-lo, g.dim)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", lo, hi, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// geminiVectors validates a response against the requested batch size and
// dimensionality. The API returns embeddings in request order.
func geminiVectors(resp *genai.EmbedContentResponse, want, dim int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != want {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("got %d embeddings, want %d", got, want)
	}

	vecs := make([][]float32, want)
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		if len(e.Values) != dim {
			return nil, fmt.Errorf("embedding %d has %d dims, want %d", i, len(e.Values), dim)
		}
		vecs[i] = e.Values
	}
	return vecs, nil
}

// geminiErr strips the gax wrapper so callers match on the transport
// error underneath.
func geminiErr(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		if u := e.Unwrap(); u != nil {
			return u
		}
	}
	return err
}
