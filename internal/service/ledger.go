package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/repository"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
)

// DefaultDateTimeFormat is the layout of task timestamps.
const DefaultDateTimeFormat = "2006-01-02 15:04:05"

// Ledger tracks the lifecycle of background tasks. A record starts in
// progress and moves exactly once to done or error.
type Ledger struct {
	store  repository.TaskStatusStore
	layout string
	now    func() time.Time
	logger *slog.Logger
}

// NewLedger creates a ledger formatting timestamps with layout in UTC.
func NewLedger(store repository.TaskStatusStore, layout string, logger *slog.Logger) *Ledger {
	if layout == "" {
		layout = DefaultDateTimeFormat
	}
	return &Ledger{
		store:  store,
		layout: layout,
		now:    time.Now,
		logger: logger,
	}
}

func (l *Ledger) timestamp() string {
	return l.now().UTC().Format(l.layout)
}

// Create stores a new in-progress record with a random UUID.
func (l *Ledger) Create(ctx context.Context) (*domain.TaskStatusRecord, error) {
	rec := &domain.TaskStatusRecord{
		UUID:      uuid.NewString(),
		Status:    domain.TaskInProgress,
		CreatedAt: l.timestamp(),
	}
	if err := l.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return rec, nil
}

// Update overwrites the stored record.
func (l *Ledger) Update(ctx context.Context, rec *domain.TaskStatusRecord) error {
	if err := l.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("update task %s: %w", rec.UUID, err)
	}
	return nil
}

// Complete marks the task done.
func (l *Ledger) Complete(ctx context.Context, rec *domain.TaskStatusRecord) error {
	return l.finish(ctx, rec, domain.TaskDone, nil)
}

// Fail marks the task failed with details describing the failure.
func (l *Ledger) Fail(ctx context.Context, rec *domain.TaskStatusRecord, details any) error {
	return l.finish(ctx, rec, domain.TaskError, details)
}

func (l *Ledger) finish(ctx context.Context, rec *domain.TaskStatusRecord, status domain.TaskStatus, details any) error {
	current := rec.Status
	stored, err := l.store.Get(ctx, rec.UUID)
	switch {
	case err == nil:
		current = stored.Status
	case !errors.Is(err, apperrors.ErrNotFound):
		// The write below is what matters; a failed read must not strand the task.
		l.logger.WarnContext(ctx, "could not load task before finishing it",
			slog.String("task_uuid", rec.UUID),
			slog.String("error", err.Error()),
		)
	}
	if current.Terminal() {
		return apperrors.Conflict(fmt.Sprintf("task %s is already finished with status %q", rec.UUID, current))
	}

	doneAt := l.timestamp()
	rec.Status = status
	rec.DoneAt = &doneAt
	rec.Details = details
	return l.Update(ctx, rec)
}

// Get returns the record of task id.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.TaskStatusRecord, error) {
	rec, err := l.store.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFoundMessage(fmt.Sprintf("Task with UUID %s does not exist.", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return rec, nil
}
