// Package buffer provides small thread-safe containers for streaming
// pipelines.
package buffer

import (
	"fmt"
	"io"
	"sync"
)

// Queue is a bounded FIFO queue soldered between a producer and a consumer
// goroutine. Push blocks while the queue is full and Next blocks while it
// is empty, so a slow consumer applies backpressure to the producer.
//
// The write side is closed with CloseWrite for a normal end of stream, or
// CloseWithError to abort. After CloseWrite, Next drains the remaining
// items and then reports io.EOF. After CloseWithError, both sides fail
// immediately with the given error; queued items are discarded.
type Queue[T any] struct {
	cond *sync.Cond

	mu         sync.Mutex
	items      []T
	head, tail int64
	done       bool // write side closed
	err        error
}

// NewQueue creates a queue holding at most capacity items. Panics if
// capacity is not positive.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("buffer: queue capacity must be positive")
	}
	q := &Queue[T]{items: make([]T, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends one item, blocking while the queue is full. It fails once
// the write side is closed.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := int64(len(q.items))
	for {
		if q.err != nil {
			return fmt.Errorf("buffer: push to closed queue: %w", q.err)
		}
		if q.done {
			return fmt.Errorf("buffer: push to closed queue: %w", io.ErrClosedPipe)
		}
		if q.tail-q.head < size {
			break
		}
		q.cond.Wait()
	}

	q.items[q.tail%size] = v
	q.tail++
	q.cond.Signal()
	return nil
}

// Next removes and returns the oldest item, blocking while the queue is
// empty. It returns io.EOF once the write side is closed and the queue is
// drained, or the abort error if the queue was closed with one.
func (q *Queue[T]) Next() (T, error) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.err != nil {
			return zero, q.err
		}
		if q.head < q.tail {
			break
		}
		if q.done {
			return zero, io.EOF
		}
		q.cond.Wait()
	}

	i := q.head % int64(len(q.items))
	v := q.items[i]
	q.items[i] = zero // drop the reference for the collector
	q.head++
	q.cond.Signal()
	return v, nil
}

// CloseWrite closes the write side. Queued items remain readable; once
// drained, Next reports io.EOF. Safe to call more than once.
func (q *Queue[T]) CloseWrite() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return
	}
	q.done = true
	q.cond.Broadcast()
}

// CloseWithError aborts the queue. Pending and future operations on both
// sides fail with err, and queued items are discarded. A nil err is
// replaced with io.ErrClosedPipe. Only the first call takes effect.
func (q *Queue[T]) CloseWithError(err error) {
	if err == nil {
		err = io.ErrClosedPipe
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.err = err
	q.done = true
	q.cond.Broadcast()
}

// Err returns the abort error, or nil if the queue was not aborted.
func (q *Queue[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.tail - q.head)
}
