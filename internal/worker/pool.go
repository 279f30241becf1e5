// Package worker runs evaluation jobs in the background.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/observability"
)

var (
	// ErrPoolClosed indicates the pool no longer accepts jobs.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrQueueFull indicates the job could not be queued in time.
	ErrQueueFull = errors.New("worker pool queue is full")
)

const submitWait = time.Second

// Job identifies one submission to evaluate.
type Job struct {
	SubmissionID  string `json:"submissionId"`
	OwnerID       string `json:"ownerId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Handler processes a job. Returned errors are logged; the handler owns any status changes.
type Handler func(ctx context.Context, job Job) error

// Pool is a fixed set of goroutines draining a buffered job queue.
type Pool struct {
	jobs       chan Job
	handler    Handler
	maxWorkers int
	timeout    time.Duration
	logger     zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	active atomic.Int64
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool constructs a pool. A zero timeout disables the per-job deadline.
func NewPool(maxWorkers int, timeout time.Duration, handler Handler, logger zerolog.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Pool{
		jobs:       make(chan Job, maxWorkers*10),
		handler:    handler,
		maxWorkers: maxWorkers,
		timeout:    timeout,
		logger:     logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers. Jobs inherit values from ctx but not its cancellation.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info().Int("max_workers", p.maxWorkers).Msg("worker pool started")
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}

	p.logger.Info().Msg("worker pool stopped")
}

// Submit queues a job, waiting briefly when the queue is full.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	default:
	}

	p.logger.Warn().Str("submission_id", job.SubmissionID).Msg("worker pool queue is full")

	timer := time.NewTimer(submitWait)
	defer timer.Stop()

	select {
	case p.jobs <- job:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	p.active.Add(1)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Int("worker_id", id).
				Str("submission_id", job.SubmissionID).
				Interface("panic", r).
				Msg("worker recovered from panic")
		}

		p.active.Add(-1)
	}()

	ctx := observability.ContextWithCorrelation(p.ctx, job.CorrelationID)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.handler(ctx, job); err != nil {
		p.logger.Warn().
			Err(err).
			Int("worker_id", id).
			Str("submission_id", job.SubmissionID).
			Str("correlation_id", job.CorrelationID).
			Msg("evaluation job failed")
	}
}

// Stats reports worker and queue usage.
func (p *Pool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"active_workers": int(p.active.Load()),
		"max_workers":    p.maxWorkers,
		"queue_length":   len(p.jobs),
		"queue_capacity": cap(p.jobs),
	}
}
