// Package pool provides the generic worker pool and task queue EncoderPool
// is built from, per spec sections 4.9/4.10/5.
package pool

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ThreadPool runs each submitted task on its own goroutine, with at most a
// fixed number running at once. It has no
// cancellation primitive: shutdown is always "drain all outstanding tasks,
// then return", via Wait.
type ThreadPool struct {
	eg *errgroup.Group
}

// NewThreadPool creates a pool with workers concurrent slots; workers <= 0
// defaults to the number of available CPUs.
func NewThreadPool(workers int) *ThreadPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	eg := &errgroup.Group{}
	eg.SetLimit(workers)
	return &ThreadPool{eg: eg}
}

// Submit runs fn on a pool goroutine once a slot is free. Submit itself may
// block until a slot opens.
func (p *ThreadPool) Submit(fn func() error) {
	p.eg.Go(fn)
}

// Wait blocks until every submitted task has completed, returning the first
// error any of them returned.
func (p *ThreadPool) Wait() error {
	return p.eg.Wait()
}

// Future is a placeholder for a value produced asynchronously by a
// ThreadPool task; Get blocks until it is resolved.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve stores the result and wakes any waiters. Only the first call has
// an effect.
func (f *Future[T]) Resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Get blocks until the future is resolved.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// TaskQueue is a thread-safe FIFO queue: mutex-protected in spirit, but
// expressed as a buffered channel, per spec section 5's "condition-variable
// backed; mutex-protected push and pop; closing the queue wakes all
// waiters" — a closed Go channel gives exactly that wakeup semantics for
// free.
type TaskQueue[T any] struct {
	ch        chan T
	closeOnce sync.Once
}

// NewTaskQueue creates a queue with the given channel buffer depth.
func NewTaskQueue[T any](buffer int) *TaskQueue[T] {
	return &TaskQueue[T]{ch: make(chan T, buffer)}
}

// Push enqueues v, blocking if the queue is unbuffered or full.
func (q *TaskQueue[T]) Push(v T) { q.ch <- v }

// Close signals no more values will be pushed; safe to call more than once.
func (q *TaskQueue[T]) Close() { q.closeOnce.Do(func() { close(q.ch) }) }

// Pop dequeues the next value; ok is false once the queue is closed and
// drained.
func (q *TaskQueue[T]) Pop() (v T, ok bool) {
	v, ok = <-q.ch
	return v, ok
}
