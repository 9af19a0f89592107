package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
)

// ModelGPT4o is the default chat model.
const ModelGPT4o = "gpt-4o"

// OpenAI finish reasons.
const (
	oaiFinishStop          = "stop"
	oaiFinishLength        = "length"
	oaiFinishContentFilter = "content_filter"
)

// OpenAI implements [Generator] using the OpenAI chat completions API
// with SSE streaming. OpenAI-compatible providers work via WithBaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      ModelGPT4o,
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

	return &OpenAI{client: &client, model: cfg.model}
}

// Model returns the chat model identifier.
func (g *OpenAI) Model() string {
	return g.model
}

// GenerateStream starts one completion and streams its text.
func (g *OpenAI) GenerateStream(ctx context.Context, req Request) (Stream, error) {
	params, err := g.params(req)
	if err != nil {
		return nil, err
	}

	b := NewStreamBuilder(defaultStreamDepth)
	go func() {
		if err := oaiPull(b, g.client.Chat.Completions.NewStreaming(ctx, params)); err != nil {
			b.Abort(err)
		}
	}()
	return b.Stream(), nil
}

func (g *OpenAI) params(req Request) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for i, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case RoleModel:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("llm: message %d has unsupported role %q", i, m.Role)
		}
	}
	if len(msgs) == 0 {
		return openai.ChatCompletionNewParams{}, errors.New("llm: empty request")
	}

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.model,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(float64(req.Temperature))
	}
	return params, nil
}

// oaiPull forwards stream chunks into the builder until a finish reason
// arrives. A stream that ends without one is a protocol error.
func oaiPull(b *StreamBuilder, stream *ssestream.Stream[openai.ChatCompletionChunk]) error {
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if s := choice.Delta.Content; s != "" {
			if err := b.Add(s); err != nil {
				return err
			}
		}
		if s := choice.Delta.Refusal; s != "" {
			return b.Blocked(oaiUsage(chunk.Usage), s)
		}

		switch choice.FinishReason {
		case "":
			// generation continues
		case oaiFinishStop:
			return b.Done(oaiUsage(chunk.Usage))
		case oaiFinishLength:
			return b.Truncated(oaiUsage(chunk.Usage))
		case oaiFinishContentFilter:
			return b.Blocked(oaiUsage(chunk.Usage), "content filter")
		default:
			return b.Unexpected(oaiUsage(chunk.Usage), fmt.Errorf("finish reason %q", choice.FinishReason))
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return errors.New("llm: stream ended without a finish reason")
}

func oaiUsage(u openai.CompletionUsage) Usage {
	return Usage{
		PromptTokens:    u.PromptTokens,
		GeneratedTokens: u.CompletionTokens,
	}
}
