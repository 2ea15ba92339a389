package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of work handed to a Queue.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue runs batches of jobs on a fixed set of goroutines, retrying failed jobs.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewQueue builds a new queue with the provided handler. MaxRetries of 0 means one attempt.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}
}

// Run processes every job and blocks until each has succeeded or used up its retries.
// The returned error joins the last failure of every job that never succeeded.
func (q *Queue) Run(ctx context.Context, batch ...Job) error {
	if len(batch) == 0 {
		return nil
	}

	pending := make(chan Job, len(batch))
	now := time.Now().UTC()
	for _, job := range batch {
		if job.Enqueued.IsZero() {
			job.Enqueued = now
		}
		pending <- job
	}
	close(pending)

	workers := q.workers
	if workers > len(batch) {
		workers = len(batch)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range pending {
				if err := q.process(ctx, workerID, job); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}(i + 1)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (q *Queue) process(ctx context.Context, workerID int, job Job) error {
	for {
		err := q.handler(ctx, job)
		if err == nil {
			return nil
		}
		job.Attempt++
		if job.Attempt > q.maxRetries {
			q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
			return fmt.Errorf("%s job %s: %w", q.name, job.ID, err)
		}
		q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

		timer := time.NewTimer(q.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s job %s: %w", q.name, job.ID, errors.Join(err, ctx.Err()))
		case <-timer.C:
		}
	}
}
