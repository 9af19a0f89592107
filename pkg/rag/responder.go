package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/earshot-ai/earshot/pkg/buffer"
	"github.com/earshot-ai/earshot/pkg/llm"
)

// Generation defaults.
const (
	defaultAnswerTokens = 1000
	defaultTemperature  = 0.7

	eventQueueDepth = 32
)

// ResponderConfig configures a new [Responder].
type ResponderConfig struct {
	// Builder assembles the retrieval context. Required.
	Builder *ContextBuilder

	// Generator produces the streamed answer. Required.
	Generator llm.Generator

	// Logger receives generation diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	// MaxTokens caps the generated answer. Defaults to 1000.
	MaxTokens int

	// Temperature for generation. Defaults to 0.7.
	Temperature float32
}

// Responder answers chat turns as ordered event streams.
type Responder struct {
	builder     *ContextBuilder
	gen         llm.Generator
	log         *slog.Logger
	maxTokens   int
	temperature float32
}

// NewResponder creates a Responder from cfg.
func NewResponder(cfg ResponderConfig) (*Responder, error) {
	if cfg.Builder == nil {
		return nil, errors.New("rag: ResponderConfig.Builder is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("rag: ResponderConfig.Generator is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnswerTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Responder{
		builder:     cfg.Builder,
		gen:         cfg.Generator,
		log:         log,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Respond retrieves context for message and streams the generated
// answer. The stream yields text events in generation order, then the
// citation events for the retrieved segments, then one done event. A
// failure during generation ends the stream with an error event and no
// done. Failures before generation starts (query embedding, retrieval,
// opening the model stream) are returned here instead.
//
// Closing the returned stream stops the generation pull.
func (r *Responder) Respond(ctx context.Context, userID, userName, message string, history []Turn, loc *time.Location) (*EventStream, error) {
	rc, err := r.builder.Build(ctx, userID, message, loc)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		System:      systemPrompt(rc.Text, userName),
		Messages:    turns(history, message),
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	}
	upstream, err := r.gen.GenerateStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	es := &EventStream{q: buffer.NewQueue[Event](eventQueueDepth)}
	go r.pump(upstream, rc.Citations, es)
	return es, nil
}

// pump forwards generated text into the event stream, then appends the
// citation trailer and the done event. Push failures mean the consumer
// closed the stream; the pull stops and the upstream handle is
// released.
func (r *Responder) pump(upstream llm.Stream, cites []Citation, es *EventStream) {
	defer upstream.Close()

	for {
		text, err := upstream.Next()
		if err != nil {
			if !answered(err) {
				r.log.Warn("chat generation failed", "error", err)
				es.fail(err)
				return
			}
			r.logUsage(err)
			break
		}
		if es.push(Event{Type: EventText, Content: text}) != nil {
			return
		}
	}

	for i := range cites {
		if es.push(Event{Type: EventCitation, Citation: &cites[i]}) != nil {
			return
		}
	}
	if es.push(Event{Type: EventDone}) == nil {
		es.q.CloseWrite()
	}
}

// answered reports whether a terminal stream error still delivered a
// usable answer. A generation cut off at the token cap counts; safety
// blocks and transport failures do not.
func answered(err error) bool {
	var state *llm.State
	if !errors.As(err, &state) {
		return false
	}
	switch state.Status() {
	case llm.StatusDone, llm.StatusTruncated:
		return true
	}
	return false
}

func (r *Responder) logUsage(err error) {
	var state *llm.State
	if !errors.As(err, &state) {
		return
	}
	usage := state.Usage()
	r.log.Info("chat generation finished",
		"prompt_tokens", usage.PromptTokens,
		"generated_tokens", usage.GeneratedTokens,
	)
}

// turns converts wire-format history into generation messages and
// appends the current user message.
func turns(history []Turn, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == "assistant" || t.Role == "model" {
			role = llm.RoleModel
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}

// systemPrompt builds the instruction message. It names the user,
// demands grounding in the supplied context with explicit date, time,
// and speaker citations, and forbids invented answers. With no context
// it tells the model to say that nothing matched.
func systemPrompt(context, userName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a helpful assistant that helps %s recall and search through their recorded conversations and transcripts.

You have access to transcripts from %s's conversations. When answering questions:
1. Use the provided transcript context to answer questions accurately
2. Always cite the specific date, time, and speaker when referencing information from transcripts
3. If the information isn't in the provided context, say so - don't make things up
4. Be concise but thorough in your responses
5. When quoting from transcripts, use quotation marks

`, userName, userName)

	if context == "" {
		fmt.Fprintf(&b, "No relevant transcripts were found for this query. Let %s know that you couldn't find any matching conversations, and suggest they try a different search term or time period.", userName)
		return b.String()
	}

	fmt.Fprintf(&b, `Here are the relevant transcripts from %s's conversations:

%s

---

Use the above transcripts to answer the user's question. Reference specific quotes and timestamps when relevant.`, userName, context)
	return b.String()
}

// EventStream delivers one response's events in order. It is the read
// side of a bounded queue: a slow reader applies backpressure to the
// generation pull rather than buffering the whole answer.
type EventStream struct {
	q *buffer.Queue[Event]
}

// Next returns the next event, blocking until one arrives. After the
// terminal event (done or error) is consumed it reports io.EOF.
func (s *EventStream) Next() (Event, error) {
	return s.q.Next()
}

// Close releases the stream. The generation pull stops once it notices.
func (s *EventStream) Close() error {
	s.q.CloseWithError(nil)
	return nil
}

func (s *EventStream) push(evt Event) error {
	return s.q.Push(evt)
}

// fail ends the stream with an error event. No done event follows.
func (s *EventStream) fail(err error) {
	if s.q.Push(Event{Type: EventError, Message: err.Error()}) == nil {
		s.q.CloseWrite()
	}
}
