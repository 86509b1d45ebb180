package dispatch

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool is shutting down")
var ErrPoolSaturated = errors.New("worker pool queue is full")

// Pool runs submitted tasks on a fixed number of workers. It exists so
// command handlers execute off the gateway read loop; two tasks may run
// concurrently with no ordering guarantee.
type Pool struct {
	mu     sync.RWMutex
	closed bool

	tasks chan func()
	wg    sync.WaitGroup
}

func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task for execution. It fails once shutdown has begun, and
// when the queue is full, so the gateway read loop never blocks on slow
// handlers.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolSaturated
	}
}

// Shutdown stops intake and waits for in-flight tasks to finish, or for the
// context to expire. Tasks are never forcibly cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
