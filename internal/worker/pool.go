// Package worker runs background tasks on a bounded set of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dtroode/carebook-server/internal/logger"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown was called.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrQueueFull is returned by Submit when every worker is busy and the queue has no room.
	ErrQueueFull = errors.New("worker queue is full")
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Pool executes submitted tasks on a fixed number of workers.
type Pool struct {
	tasks  chan Task
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers sharing a queue of queueSize pending tasks.
func NewPool(size, queueSize int, logger *logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	for i := 0; i < size; i++ {
		p.group.Go(p.work)
	}

	return p
}

// Submit queues task without blocking.
func (p *Pool) Submit(task func(ctx context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// When ctx expires first, running tasks see their context cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- p.group.Wait()
	}()

	defer p.cancel()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

func (p *Pool) work() error {
	for task := range p.tasks {
		p.run(task)
	}
	return nil
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker pool: task panicked", "panic", fmt.Sprint(r))
		}
	}()

	if err := task(p.ctx); err != nil {
		p.logger.Error("Worker pool: task failed", "error", err.Error())
	}
}
