package llm

import (
	"fmt"

	"github.com/earshot-ai/earshot/pkg/buffer"
)

const defaultStreamDepth = 32

// event rides the queue between the provider pull goroutine and the
// consumer. Exactly one of text or state is set.
type event struct {
	text  string
	state *State
}

// StreamBuilder is the write side of a [Stream]. A provider pull
// goroutine Adds text fragments and finishes with exactly one of Done,
// Truncated, Blocked, or Unexpected; Abort tears the stream down when
// the pull itself fails.
type StreamBuilder struct {
	q *buffer.Queue[event]
}

// NewStreamBuilder creates a builder whose stream buffers at most depth
// fragments. A non-positive depth selects a small default.
func NewStreamBuilder(depth int) *StreamBuilder {
	if depth <= 0 {
		depth = defaultStreamDepth
	}
	return &StreamBuilder{q: buffer.NewQueue[event](depth)}
}

// Add appends one text fragment, blocking while the consumer lags. Empty
// fragments are skipped.
func (b *StreamBuilder) Add(text string) error {
	if text == "" {
		return nil
	}
	return b.q.Push(event{text: text})
}

// Done finishes the stream cleanly.
func (b *StreamBuilder) Done(usage Usage) error {
	return b.finish(Done(usage))
}

// Truncated finishes the stream at the token limit.
func (b *StreamBuilder) Truncated(usage Usage) error {
	return b.finish(Truncated(usage))
}

// Blocked finishes the stream with a safety refusal.
func (b *StreamBuilder) Blocked(usage Usage, refusal string) error {
	return b.finish(Blocked(usage, refusal))
}

// Unexpected finishes the stream with a protocol surprise from the
// provider.
func (b *StreamBuilder) Unexpected(usage Usage, err error) error {
	return b.finish(Error(usage, err))
}

func (b *StreamBuilder) finish(s *State) error {
	if err := b.q.Push(event{state: s}); err != nil {
		return err
	}
	b.q.CloseWrite()
	return nil
}

// Abort tears the stream down; queued fragments are discarded and the
// consumer sees err immediately.
func (b *StreamBuilder) Abort(err error) {
	b.q.CloseWithError(err)
}

// Stream returns the read side.
func (b *StreamBuilder) Stream() Stream {
	return (*stream)(b)
}

type stream StreamBuilder

var _ Stream = (*stream)(nil)

func (s *stream) Next() (string, error) {
	evt, err := s.q.Next()
	if err != nil {
		return "", err
	}
	if evt.state == nil {
		return evt.text, nil
	}

	var terminal error
	switch evt.state.Status() {
	case StatusDone, StatusTruncated, StatusBlocked, StatusError:
		terminal = evt.state
	default:
		terminal = fmt.Errorf("llm: unexpected stream status %d", evt.state.Status())
	}
	// Pin the terminal condition so every later Next repeats it and a
	// still-running producer unblocks.
	s.q.CloseWithError(terminal)
	return "", terminal
}

func (s *stream) Close() error {
	s.q.CloseWithError(nil)
	return nil
}

func (s *stream) CloseWithError(err error) error {
	s.q.CloseWithError(err)
	return nil
}
