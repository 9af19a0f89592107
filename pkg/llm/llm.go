// Package llm provides streamed text generation over chat-style requests.
//
// A [Generator] takes one [Request] (system instruction, prior turns, the
// new user message) and returns a [Stream] of text fragments in
// generation order. Terminal conditions arrive as *[State] errors from
// Stream.Next: a clean finish matches [ErrDone] via errors.Is, truncation
// and safety blocks carry their own statuses, and transport failures
// surface as ordinary errors.
//
// Streams are backed by a bounded queue, so a slow reader applies
// backpressure to the model pull instead of buffering the whole answer.
// Closing a stream stops the pull.
package llm

import "context"

// Role identifies who produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one prior conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Request describes one generation.
type Request struct {
	// System is the instruction message. Sent first when non-empty.
	System string

	// Messages are the conversation turns, oldest first, ending with the
	// new user message.
	Messages []Message

	// MaxTokens caps the generated length when positive.
	MaxTokens int

	// Temperature is applied when positive.
	Temperature float32
}

// Usage counts tokens for one generation.
type Usage struct {
	PromptTokens    int64
	GeneratedTokens int64
}

// Generator produces streamed completions.
type Generator interface {
	GenerateStream(ctx context.Context, req Request) (Stream, error)
}

// Stream yields generated text fragments in order.
type Stream interface {
	// Next returns the next fragment, or a terminal error. Once a
	// terminal error is returned, every later call returns the same one.
	Next() (string, error)

	// Close releases the stream and stops the generation pull.
	Close() error

	// CloseWithError aborts the stream with err.
	CloseWithError(err error) error
}
