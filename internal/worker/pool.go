// Package worker runs background jobs on a fixed number of goroutines fed by a
// bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrPoolClosed is returned by Submit after Shutdown has started.
	ErrPoolClosed = errors.New("worker pool is shut down")
)

var (
	jobsQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_jobs_queued",
		Help: "Jobs waiting for a free worker.",
	})
	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_jobs_running",
		Help: "Jobs currently executing.",
	})
	jobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_jobs_rejected_total",
		Help: "Jobs refused by Submit, by reason.",
	}, []string{"reason"})
)

// Job is a unit of background work. The context is detached from the caller
// and is only canceled when Shutdown gives up waiting.
type Job func(ctx context.Context)

// Pool executes submitted jobs on a fixed set of workers.
type Pool struct {
	jobs   chan Job
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts a pool with the given number of workers and queue capacity.
// Values below one are raised to one.
func New(workers, queueSize int, logger *slog.Logger) *Pool {
	workers = max(workers, 1)
	queueSize = max(queueSize, 1)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan Job, queueSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
	}
	logger.Info("worker pool started",
		slog.Int("workers", workers),
		slog.Int("queue_size", queueSize),
	)
	return p
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		jobsRejected.WithLabelValues("closed").Inc()
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		jobsQueued.Inc()
		return nil
	default:
		jobsRejected.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		jobsQueued.Dec()
		p.execute(id, job)
	}
}

func (p *Pool) execute(id int, job Job) {
	jobsRunning.Inc()
	defer jobsRunning.Dec()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panicked",
				slog.Int("worker", id),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	job(p.ctx)
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. If ctx expires first, the job context is canceled and ctx.Err() is
// returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("worker pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("worker pool shutdown deadline exceeded")
		return ctx.Err()
	}
}
