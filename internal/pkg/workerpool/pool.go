package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool closed")

type Job func(ctx context.Context)

type WorkerPool struct {
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts workerCount workers that stop when ctx is cancelled
// or the pool is shut down.
func NewWorkerPool(ctx context.Context, workerCount int, queueSize int, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	pool := &WorkerPool{
		queue:  make(chan Job, queueSize),
		logger: logger,
	}

	for range workerCount {
		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("worker received shutdown signal")
			p.drain()
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, job)
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, job Job) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.Any("panic", r))
		}
	}()
	job(ctx)
}

// drain discards queued jobs after cancellation so Shutdown does not wait on
// work that will never run.
func (p *WorkerPool) drain() {
	for {
		select {
		case _, ok := <-p.queue:
			if !ok {
				return
			}
			p.wg.Done()
		default:
			return
		}
	}
}

// Submit queues job, blocking while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out")
		return ctx.Err()
	case <-done:
		p.logger.Debug("worker pool shutdown complete")
		return nil
	}
}

// Retry calls fn up to retries times, sleeping delay between attempts, and
// returns the last error.
func Retry(ctx context.Context, retries int, delay time.Duration, logger *zap.Logger, fn func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 1 {
		retries = 1
	}

	var err error
	for i := range retries {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warn("attempt failed", zap.Int("attempt", i+1), zap.Int("retries", retries), zap.Error(err))

		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Error("giving up after max retries", zap.Int("retries", retries))
	return err
}
