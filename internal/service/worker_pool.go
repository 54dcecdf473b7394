package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPoolSaturated is returned when every worker slot is busy.
var ErrPoolSaturated = errors.New("worker pool saturated")

// ErrPoolClosed is returned when submitting after Shutdown.
var ErrPoolClosed = errors.New("worker pool closed")

// workerPool bounds the number of concurrently running tasks. Submission is
// non-blocking: when no slot is free the caller gets ErrPoolSaturated
// immediately instead of queueing, which keeps turn latency predictable.
type workerPool struct {
	slots  chan struct{}
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	// ctx is the pool's cancel scope. Task contexts derive from it, so
	// cancelling it force-terminates every running task.
	ctx    context.Context
	cancel context.CancelFunc
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &workerPool{
		slots:  make(chan struct{}, size),
		ctx:    ctx,
		cancel: cancel,
	}
}

// submit runs task on its own goroutine if a slot is free. The task's context
// is cancelled when either the caller's context or the pool's cancel scope is
// cancelled, so a forced shutdown reaches every running task.
func (p *workerPool) submit(ctx context.Context, task func(context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	select {
	case p.slots <- struct{}{}:
	default:
		p.mu.Unlock()
		return ErrPoolSaturated
	}
	p.wg.Add(1)
	p.mu.Unlock()

	tctx, tcancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.ctx, tcancel)

	go func() {
		defer func() {
			stop()
			tcancel()
			<-p.slots
			p.wg.Done()
		}()
		task(tctx)
	}()
	return nil
}

// active reports how many tasks are currently running.
func (p *workerPool) active() int {
	return len(p.slots)
}

// shutdown stops accepting tasks and waits up to grace for running tasks to
// finish. When the grace period expires the pool's cancel scope is cancelled,
// force-terminating the remaining tasks; their count is returned. Zero means
// everything drained in time.
func (p *workerPool) shutdown(grace time.Duration) int {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		p.cancel()
		return 0
	case <-timer.C:
		pending := p.active()
		p.cancel()
		return pending
	}
}
