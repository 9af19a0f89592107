package speech

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ModelWhisper1 is the hosted Whisper transcription model.
const ModelWhisper1 = "whisper-1"

const defaultLanguage = "en"

// Whisper implements [Transcriber] using the OpenAI audio transcription
// API. It also works with any OpenAI-compatible provider via WithBaseURL.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

var _ Transcriber = (*Whisper)(nil)

// NewWhisper creates a Whisper transcriber.
func NewWhisper(apiKey string, opts ...Option) *Whisper {
	cfg := config{
		model:      ModelWhisper1,
		language:   defaultLanguage,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &Whisper{
		client:   &client,
		model:    cfg.model,
		language: cfg.language,
	}
}

// Model returns the transcription model identifier.
func (w *Whisper) Model() string {
	return w.model
}

// Transcribe uploads one WAV chunk and returns the transcription with
// surrounding whitespace trimmed. An empty result means the model heard
// nothing worth writing down.
func (w *Whisper) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", fmt.Errorf("speech: empty audio")
	}

	params := openai.AudioTranscriptionNewParams{
		Model:    w.model,
		File:     openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Language: openai.String(w.language),
	}
	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModel, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
