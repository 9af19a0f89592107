package llm

import (
	"errors"
	"strings"
	"testing"
)

// drain consumes the stream until its terminal error.
func drain(t *testing.T, s Stream) (string, error) {
	t.Helper()
	var sb strings.Builder
	for {
		text, err := s.Next()
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
}

func TestStreamDelivery(t *testing.T) {
	b := NewStreamBuilder(4)
	go func() {
		b.Add("Hel")
		b.Add("") // skipped
		b.Add("lo")
		b.Done(Usage{PromptTokens: 3, GeneratedTokens: 7})
	}()

	s := b.Stream()
	got, err := drain(t, s)
	if got != "Hello" {
		t.Fatalf("text = %q, want %q", got, "Hello")
	}
	if !errors.Is(err, ErrDone) {
		t.Fatalf("terminal error = %v, want ErrDone", err)
	}

	var state *State
	if !errors.As(err, &state) {
		t.Fatalf("terminal error %T is not *State", err)
	}
	if state.Status() != StatusDone {
		t.Errorf("status = %v, want %v", state.Status(), StatusDone)
	}
	if u := state.Usage(); u.PromptTokens != 3 || u.GeneratedTokens != 7 {
		t.Errorf("usage = %+v", u)
	}

	// The terminal condition repeats on later calls.
	if _, err2 := s.Next(); !errors.Is(err2, ErrDone) {
		t.Errorf("second Next error = %v, want ErrDone", err2)
	}
}

func TestStreamTerminalStatuses(t *testing.T) {
	tests := []struct {
		name   string
		finish func(b *StreamBuilder) error
		status Status
		done   bool
	}{
		{"truncated", func(b *StreamBuilder) error { return b.Truncated(Usage{}) }, StatusTruncated, false},
		{"blocked", func(b *StreamBuilder) error { return b.Blocked(Usage{}, "safety") }, StatusBlocked, false},
		{"done", func(b *StreamBuilder) error { return b.Done(Usage{}) }, StatusDone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewStreamBuilder(1)
			go func() {
				if err := tt.finish(b); err != nil {
					t.Errorf("finish: %v", err)
				}
			}()

			_, err := drain(t, b.Stream())
			if errors.Is(err, ErrDone) != tt.done {
				t.Fatalf("errors.Is(err, ErrDone) = %v, want %v (err=%v)", !tt.done, tt.done, err)
			}
			var state *State
			if !errors.As(err, &state) {
				t.Fatalf("terminal error %T is not *State", err)
			}
			if state.Status() != tt.status {
				t.Errorf("status = %v, want %v", state.Status(), tt.status)
			}
		})
	}
}

func TestStreamUnexpected(t *testing.T) {
	errBoom := errors.New("odd finish")
	b := NewStreamBuilder(1)
	go b.Unexpected(Usage{}, errBoom)

	_, err := drain(t, b.Stream())
	if !errors.Is(err, errBoom) {
		t.Fatalf("terminal error = %v, want wrapped %v", err, errBoom)
	}
	var state *State
	if !errors.As(err, &state) || state.Status() != StatusError {
		t.Fatalf("terminal error = %v, want StatusError state", err)
	}
}

func TestStreamAbort(t *testing.T) {
	errBoom := errors.New("connection reset")
	b := NewStreamBuilder(1)
	b.Abort(errBoom)

	_, err := b.Stream().Next()
	if !errors.Is(err, errBoom) {
		t.Fatalf("Next error = %v, want %v", err, errBoom)
	}
	var state *State
	if errors.As(err, &state) {
		t.Fatalf("abort error should not be a *State, got %v", state)
	}
}

func TestStreamCloseStopsProducer(t *testing.T) {
	b := NewStreamBuilder(1)
	s := b.Stream()

	prodErr := make(chan error, 1)
	go func() {
		for i := 0; ; i++ {
			if err := b.Add("x"); err != nil {
				prodErr <- err
				return
			}
		}
	}()

	// Take one fragment so the producer is definitely running, then hang up.
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	s.Close()

	if err := <-prodErr; err == nil {
		t.Fatal("producer Add kept succeeding after Close")
	}
	if _, err := s.Next(); err == nil {
		t.Fatal("Next succeeded after Close")
	}
}

func TestStreamCloseWithError(t *testing.T) {
	errBoom := errors.New("client went away")
	b := NewStreamBuilder(1)
	s := b.Stream()

	s.CloseWithError(errBoom)
	if err := b.Add("x"); !errors.Is(err, errBoom) {
		t.Fatalf("Add error = %v, want %v", err, errBoom)
	}
}
