package buffer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestQueueOrder(t *testing.T) {
	q := NewQueue[int](4)
	for i := 1; i <= 3; i++ {
		if err := q.Push(i); err != nil {
			t.Fatal(err)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len = %d, want 3", q.Len())
	}
	for i := 1; i <= 3; i++ {
		v, err := q.Next()
		if err != nil {
			t.Fatal(err)
		}
		if v != i {
			t.Errorf("Next = %d, want %d", v, i)
		}
	}
}

func TestQueueDrainThenEOF(t *testing.T) {
	q := NewQueue[string](2)
	_ = q.Push("a")
	_ = q.Push("b")
	q.CloseWrite()

	// Remaining items stay readable after CloseWrite.
	for _, want := range []string{"a", "b"} {
		v, err := q.Next()
		if err != nil {
			t.Fatal(err)
		}
		if v != want {
			t.Errorf("Next = %q, want %q", v, want)
		}
	}
	if _, err := q.Next(); err != io.EOF {
		t.Errorf("Next after drain = %v, want io.EOF", err)
	}
	if err := q.Push("c"); err == nil {
		t.Error("Push after CloseWrite should fail")
	}
}

func TestQueueAbort(t *testing.T) {
	boom := errors.New("boom")
	q := NewQueue[int](2)
	_ = q.Push(1)
	q.CloseWithError(boom)

	if _, err := q.Next(); !errors.Is(err, boom) {
		t.Errorf("Next after abort = %v, want boom", err)
	}
	if err := q.Push(2); !errors.Is(err, boom) {
		t.Errorf("Push after abort = %v, want boom", err)
	}
	if err := q.Err(); !errors.Is(err, boom) {
		t.Errorf("Err = %v, want boom", err)
	}

	// Only the first abort error sticks.
	q.CloseWithError(errors.New("later"))
	if err := q.Err(); !errors.Is(err, boom) {
		t.Errorf("Err after second abort = %v, want boom", err)
	}
}

func TestQueueAbortNilError(t *testing.T) {
	q := NewQueue[int](1)
	q.CloseWithError(nil)
	if _, err := q.Next(); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Next = %v, want io.ErrClosedPipe", err)
	}
}

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue[int](1)
	if err := q.Push(1); err != nil {
		t.Fatal(err)
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(2) // blocks until the consumer drains a slot
	}()

	select {
	case err := <-pushed:
		t.Fatalf("Push on full queue returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if v, err := q.Next(); err != nil || v != 1 {
		t.Fatalf("Next = %d, %v", v, err)
	}
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after Next")
	}
	if v, err := q.Next(); err != nil || v != 2 {
		t.Fatalf("Next = %d, %v", v, err)
	}
}

func TestQueueAbortUnblocksWaiters(t *testing.T) {
	q := NewQueue[int](1)
	_ = q.Push(1)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- q.Push(2) // waiting on a full queue
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		q.CloseWithError(errors.New("abort"))
		errs <- nil
	}()
	wg.Wait()

	var sawAbort bool
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			sawAbort = true
		}
	}
	if !sawAbort {
		t.Error("blocked Push was not failed by CloseWithError")
	}
}

func TestQueueConcurrent(t *testing.T) {
	const n = 1000
	q := NewQueue[int](8)

	go func() {
		for i := 0; i < n; i++ {
			if err := q.Push(i); err != nil {
				t.Errorf("Push(%d): %v", i, err)
				return
			}
		}
		q.CloseWrite()
	}()

	var got int
	for {
		v, err := q.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if v != got {
			t.Fatalf("out of order: got %d, want %d", v, got)
		}
		got++
	}
	if got != n {
		t.Errorf("consumed %d items, want %d", got, n)
	}
}

func TestNewQueuePanicsOnBadCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewQueue(0) should panic")
		}
	}()
	NewQueue[int](0)
}
