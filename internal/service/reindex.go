package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
	"github.com/utafrali/catalogue/internal/repository"
	"github.com/utafrali/catalogue/internal/worker"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
	"github.com/utafrali/catalogue/pkg/logger"
)

// finishTimeout bounds the terminal ledger write of a job.
const finishTimeout = 10 * time.Second

// Source loads every entity of one type for a full reindex.
type Source func(ctx context.Context) ([]domain.Indexable, error)

// SourceOf adapts a repository into a Source.
func SourceOf[T domain.Indexable](repo repository.Repository[T]) Source {
	return func(ctx context.Context) ([]domain.Indexable, error) {
		items, err := repo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		docs := make([]domain.Indexable, len(items))
		for i, item := range items {
			docs[i] = item
		}
		return docs, nil
	}
}

// Submitter queues a background job. *worker.Pool implements it.
type Submitter interface {
	Submit(job worker.Job) error
}

// ReindexPublisher announces finished reindex tasks.
type ReindexPublisher interface {
	PublishReindexFinished(ctx context.Context, t domain.EntityType, task *domain.TaskStatusRecord) error
}

type reindexTarget struct {
	source Source
	index  engine.IndexManager
}

// Orchestrator runs full reindexes in the background and records their
// progress in the ledger.
type Orchestrator struct {
	ledger  *Ledger
	pool    Submitter
	targets map[domain.EntityType]reindexTarget
	events  ReindexPublisher
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator with no registered entity types.
// events may be nil.
func NewOrchestrator(ledger *Ledger, pool Submitter, events ReindexPublisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:  ledger,
		pool:    pool,
		targets: make(map[domain.EntityType]reindexTarget),
		events:  events,
		logger:  logger,
	}
}

// Register makes entity type t reindexable from source into index.
func (o *Orchestrator) Register(t domain.EntityType, source Source, index engine.IndexManager) {
	o.targets[t] = reindexTarget{source: source, index: index}
}

// StartReindex records a new in-progress task, queues the reindex of t and
// returns the task without waiting for it.
func (o *Orchestrator) StartReindex(ctx context.Context, t domain.EntityType) (*domain.TaskStatusRecord, error) {
	target, ok := o.targets[t]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown entity type %q", t))
	}

	rec, err := o.ledger.Create(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := *rec

	if err := o.pool.Submit(func(jobCtx context.Context) {
		o.run(jobCtx, t, target, rec)
	}); err != nil {
		reindexJobs.WithLabelValues(string(t), "rejected").Inc()
		if ferr := o.ledger.Fail(context.WithoutCancel(ctx), rec, err.Error()); ferr != nil {
			o.logger.ErrorContext(ctx, "failed to resolve rejected reindex task",
				slog.String("task_uuid", rec.UUID),
				slog.String("error", ferr.Error()),
			)
		}
		o.logger.WarnContext(ctx, "reindex rejected",
			slog.String("entity_type", string(t)),
			slog.String("task_uuid", rec.UUID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.ServiceUnavailable("reindex queue is unavailable, retry later")
	}

	o.logger.InfoContext(ctx, "reindex queued",
		slog.String("entity_type", string(t)),
		slog.String("task_uuid", rec.UUID),
	)
	return &snapshot, nil
}

func (o *Orchestrator) run(ctx context.Context, t domain.EntityType, target reindexTarget, rec *domain.TaskStatusRecord) {
	ctx = logger.WithTaskUUID(ctx, rec.UUID)
	log := logger.WithContext(ctx, o.logger).With(slog.String("entity_type", string(t)))
	start := time.Now()

	var (
		count  int
		jobErr error
	)
	defer func() {
		if r := recover(); r != nil {
			jobErr = fmt.Errorf("panic: %v", r)
		}
		o.finish(ctx, log, t, rec, count, jobErr, time.Since(start))
	}()

	log.InfoContext(ctx, "reindex started")
	count, jobErr = o.sync(ctx, target)
}

func (o *Orchestrator) sync(ctx context.Context, target reindexTarget) (int, error) {
	docs, err := target.source(ctx)
	if err != nil {
		return 0, fmt.Errorf("load entities: %w", err)
	}
	if err := target.index.EnsureIndex(ctx); err != nil {
		return 0, &stepError{step: "ensure index", err: err}
	}
	if err := target.index.BulkSync(ctx, docs); err != nil {
		return 0, &stepError{step: "bulk sync", err: err}
	}
	return len(docs), nil
}

// stepError names the reindex step that failed. Its text carries the engine
// cause as reported, without the AppError code and message.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + apperrors.Cause(e.err).Error() }

func (e *stepError) Unwrap() error { return e.err }

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, t domain.EntityType, rec *domain.TaskStatusRecord, count int, jobErr error, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	reindexDuration.WithLabelValues(string(t)).Observe(elapsed.Seconds())

	var err error
	if jobErr == nil {
		reindexJobs.WithLabelValues(string(t), "done").Inc()
		reindexDocuments.WithLabelValues(string(t)).Observe(float64(count))
		err = o.ledger.Complete(ctx, rec)
		log.InfoContext(ctx, "reindex finished",
			slog.Int("documents", count),
			slog.Duration("elapsed", elapsed),
		)
	} else {
		reindexJobs.WithLabelValues(string(t), "error").Inc()
		err = o.ledger.Fail(ctx, rec, jobErr.Error())
		log.ErrorContext(ctx, "reindex failed",
			slog.String("error", jobErr.Error()),
			slog.Duration("elapsed", elapsed),
		)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to record reindex outcome", slog.String("error", err.Error()))
		return
	}

	if o.events == nil {
		return
	}
	if err := o.events.PublishReindexFinished(ctx, t, rec); err != nil {
		log.ErrorContext(ctx, "failed to publish reindex event", slog.String("error", err.Error()))
	}
}
