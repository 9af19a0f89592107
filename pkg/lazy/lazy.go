// Package lazy provides single-flight lazy initialization for expensive
// handles.
//
// Model clients and store connections are created once per process, on
// first use. Under concurrent first use, exactly one initialization runs;
// every other caller waits on that same attempt instead of racing a
// duplicate. The state machine is explicit: a [Value] is Uninitialized
// until someone asks for it, Loading while an attempt is in flight, then
// Ready or Failed. A failed attempt is not cached forever: the next Get
// after a failure starts a fresh attempt, so a transient backend outage
// does not wedge the process.
package lazy

import (
	"context"
	"sync"
)

// State is the lifecycle position of a [Value].
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// attempt is one initialization round. Callers that joined it read its
// outcome after done closes, even if a later round has already replaced
// the Value's current state.
type attempt[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Value lazily initializes a T on first Get.
//
// The initializer runs on a context detached from the triggering caller,
// so a caller that gives up mid-initialization does not poison the shared
// handle for everyone behind it. The triggering caller still honors its
// own context and may return early while the attempt completes in the
// background.
type Value[T any] struct {
	init func(context.Context) (T, error)

	mu    sync.Mutex
	state State
	cur   *attempt[T] // non-nil while Loading
	val   T
	err   error
}

// New creates a Value that will be initialized by init on first use.
func New[T any](init func(context.Context) (T, error)) *Value[T] {
	return &Value[T]{init: init}
}

// Get returns the initialized value, starting or joining an
// initialization attempt as needed. It blocks until the value is ready,
// the attempt fails, or ctx is done.
//
// Callers that join an attempt take that attempt's outcome. After a
// failure, the next Get starts a fresh attempt rather than replaying the
// stale error.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	var zero T

	v.mu.Lock()
	switch v.state {
	case StateReady:
		val := v.val
		v.mu.Unlock()
		return val, nil

	case StateLoading:
		a := v.cur
		v.mu.Unlock()
		select {
		case <-a.done:
			return a.val, a.err
		case <-ctx.Done():
			return zero, ctx.Err()
		}

	default: // StateUninitialized, StateFailed
		a := &attempt[T]{done: make(chan struct{})}
		v.state = StateLoading
		v.cur = a
		v.mu.Unlock()

		go v.run(context.WithoutCancel(ctx), a)

		select {
		case <-a.done:
			return a.val, a.err
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// run executes one initialization attempt and settles both the attempt
// and the Value.
func (v *Value[T]) run(ctx context.Context, a *attempt[T]) {
	a.val, a.err = v.init(ctx)

	v.mu.Lock()
	if a.err != nil {
		v.state = StateFailed
		v.err = a.err
	} else {
		v.state = StateReady
		v.val = a.val
		v.err = nil
	}
	v.cur = nil
	v.mu.Unlock()

	close(a.done)
}

// State returns the current lifecycle state.
func (v *Value[T]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the error from the most recent failed attempt, or nil once
// a later attempt succeeds.
func (v *Value[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}
