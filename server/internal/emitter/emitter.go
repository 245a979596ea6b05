package emitter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrClosed = errors.New("emitter closed")
)

// Emitter is a multi-writer, single-reader queue. Close waits for in-flight Emit calls before the
// channel is closed so that a reader ranging over Chan sees every accepted value.
type Emitter[T any] struct {
	ch     chan T
	closed atomic.Bool
	done   chan struct{}
	// held for reading by Emit and for writing by Close while it closes ch
	mu sync.RWMutex
}

func New[T any](size int) *Emitter[T] {
	return &Emitter[T]{
		ch:   make(chan T, max(size, 0)),
		done: make(chan struct{}),
	}
}

func (e *Emitter[T]) Emit(ctx context.Context, v T) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed.Load() {
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	case e.ch <- v:
		return nil
	}
}

func (e *Emitter[T]) Chan() <-chan T {
	return e.ch
}

func (e *Emitter[T]) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return // already closed
	}

	// signal blocked emit calls
	close(e.done)
	// wait for inflight emit calls to finish
	e.mu.Lock()
	defer e.mu.Unlock()
	// now we're safe to close the multi-writer queue channel
	close(e.ch)
}
