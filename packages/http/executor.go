package http

import (
	"context"
	"errors"
	"sync"
)

// ErrExecutorClosed is returned by Submit after Close.
var ErrExecutorClosed = errors.New("executor closed")

// Executor runs blocking tasks off the caller's goroutine.
type Executor interface {
	Submit(task func()) error
}

type executorKey struct{}

// WithExecutor returns a context whose async calls are dispatched to ex. The
// server installs one for every request it serves so that outbound calls made
// while handling a request never block the serving goroutine.
func WithExecutor(ctx context.Context, ex Executor) context.Context {
	return context.WithValue(ctx, executorKey{}, ex)
}

// ExecutorFrom returns the executor installed by WithExecutor.
func ExecutorFrom(ctx context.Context) (Executor, bool) {
	ex, ok := ctx.Value(executorKey{}).(Executor)
	return ex, ok && ex != nil
}

// WorkerPool is a fixed set of goroutines draining a bounded queue. Submit
// blocks while the queue is full.
type WorkerPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &WorkerPool{tasks: make(chan func(), queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

func (p *WorkerPool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrExecutorClosed
	}
	p.tasks <- task
	return nil
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
