package llm

import (
	"errors"
	"fmt"
)

// Status classifies how a generation ended.
type Status int

const (
	StatusOK Status = iota
	StatusDone
	StatusTruncated
	StatusBlocked
	StatusError
)

// ErrDone is the terminal condition of a clean finish. Match with
// errors.Is against the error returned by Stream.Next.
var ErrDone = errors.New("llm: done")

// State is the terminal error of a stream. It carries the final status
// and token usage alongside the underlying condition.
type State struct {
	usage  Usage
	status Status
	err    error
}

// Done marks a clean finish.
func Done(usage Usage) *State {
	return &State{usage: usage, status: StatusDone, err: ErrDone}
}

// Truncated marks a generation cut off by the token limit.
func Truncated(usage Usage) *State {
	return &State{usage: usage, status: StatusTruncated, err: errors.New("llm: generation truncated")}
}

// Blocked marks a generation stopped by the provider's safety layer.
func Blocked(usage Usage, refusal string) *State {
	return &State{usage: usage, status: StatusBlocked, err: fmt.Errorf("llm: generation blocked: %s", refusal)}
}

// Error marks a generation that failed mid-stream.
func Error(usage Usage, err error) *State {
	return &State{usage: usage, status: StatusError, err: fmt.Errorf("llm: generation failed: %w", err)}
}

// Usage returns the token counts reported with the terminal chunk.
func (s *State) Usage() Usage {
	return s.usage
}

// Status returns the terminal status.
func (s *State) Status() Status {
	return s.status
}

func (s *State) Unwrap() error {
	return s.err
}

func (s *State) Error() string {
	if s.status == StatusDone {
		return "llm: generation done"
	}
	return s.err.Error()
}
