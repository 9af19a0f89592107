package voiceprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/wav"
)

// DefaultModelTimeout bounds one embedding request to the model server.
const DefaultModelTimeout = 30 * time.Second

// RemoteModel talks to a speaker-embedding model server over HTTP.
//
// The server accepts a POST of WAV audio and responds with a JSON body
// carrying the embedding vector:
//
//	POST {base}/v1/speaker/embedding
//	Content-Type: audio/wav
//
//	{"embedding": [0.0183, -0.4122, ...]}
type RemoteModel struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ Model = (*RemoteModel)(nil)

// RemoteOption configures a RemoteModel.
type RemoteOption func(*RemoteModel)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(m *RemoteModel) { m.client = c }
}

// WithAPIKey sets a bearer token sent with every request.
func WithAPIKey(key string) RemoteOption {
	return func(m *RemoteModel) { m.apiKey = key }
}

// NewRemoteModel creates a client for the model server at baseURL.
func NewRemoteModel(baseURL string, opts ...RemoteOption) *RemoteModel {
	m := &RemoteModel{
		client:  &http.Client{Timeout: DefaultModelTimeout},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Embed sends canonical PCM to the model server and returns the speaker
// embedding.
func (m *RemoteModel) Embed(ctx context.Context, samples []int16) ([]float32, error) {
	body, err := wav.Encode(&wav.Audio{
		SampleRate: audio.ModelRate,
		Channels:   1,
		Samples:    samples,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request audio: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/v1/speaker/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("model server returned no embedding")
	}
	return out.Embedding, nil
}
