package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// ModelGeminiFlash is the default Gemini chat model.
const ModelGeminiFlash = "gemini-2.0-flash"

// Gemini implements [Generator] using the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	cfg := config{model: ModelGeminiFlash}
	for _, o := range opts {
		o(&cfg)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.model}, nil
}

// Model returns the chat model identifier.
func (g *Gemini) Model() string {
	return g.model
}

// GenerateStream starts one generation and streams its text.
func (g *Gemini) GenerateStream(ctx context.Context, req Request) (Stream, error) {
	cfg, contents, err := g.convert(req)
	if err != nil {
		return nil, err
	}

	b := NewStreamBuilder(defaultStreamDepth)
	go func() {
		if err := geminiPull(b, g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg)); err != nil {
			b.Abort(geminiErr(err))
		}
	}()
	return b.Stream(), nil
}

func (g *Gemini) convert(req Request) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for i, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleModel:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			return nil, nil, fmt.Errorf("llm: message %d has unsupported role %q", i, m.Role)
		}
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("llm: empty request")
	}
	return cfg, contents, nil
}

// geminiPull forwards response chunks into the builder until a finish
// reason arrives.
func geminiPull(b *StreamBuilder, itr iter.Seq2[*genai.GenerateContentResponse, error]) error {
	for chunk, err := range itr {
		if err != nil {
			return err
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]

		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if p.Text == "" {
					continue
				}
				if err := b.Add(p.Text); err != nil {
					return err
				}
			}
		}

		switch cand.FinishReason {
		case genai.FinishReasonUnspecified, "":
			// generation continues
		case genai.FinishReasonStop:
			return b.Done(geminiUsage(chunk.UsageMetadata))
		case genai.FinishReasonMaxTokens:
			return b.Truncated(geminiUsage(chunk.UsageMetadata))
		case genai.FinishReasonSafety:
			var cats []string
			for _, sr := range cand.SafetyRatings {
				if sr.Blocked {
					cats = append(cats, string(sr.Category))
				}
			}
			return b.Blocked(geminiUsage(chunk.UsageMetadata), "blocked by "+strings.Join(cats, ", "))
		default:
			return b.Unexpected(geminiUsage(chunk.UsageMetadata), fmt.Errorf("finish reason %q", cand.FinishReason))
		}
	}
	return errors.New("llm: stream ended without a finish reason")
}

func geminiUsage(m *genai.GenerateContentResponseUsageMetadata) Usage {
	if m == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:    int64(m.PromptTokenCount),
		GeneratedTokens: int64(m.CandidatesTokenCount),
	}
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
