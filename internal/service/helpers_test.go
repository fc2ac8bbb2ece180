package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
	"github.com/utafrali/catalogue/internal/engine/memory"
	"github.com/utafrali/catalogue/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

// inlineSubmitter runs jobs synchronously inside Submit.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(job worker.Job) error {
	job(context.Background())
	return nil
}

// rejectingSubmitter refuses every job.
type rejectingSubmitter struct{ err error }

func (r rejectingSubmitter) Submit(worker.Job) error { return r.err }

// failingIndex wraps a memory index and fails selected operations.
type failingIndex struct {
	*memory.Index
	ensureErr error
	bulkErr   error
	searchErr error
}

func newFailingIndex() *failingIndex {
	return &failingIndex{Index: memory.New(engine.ProductIndex("products_index"), 0)}
}

func (f *failingIndex) EnsureIndex(ctx context.Context) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	return f.Index.EnsureIndex(ctx)
}

func (f *failingIndex) BulkSync(ctx context.Context, docs []domain.Indexable) error {
	if f.bulkErr != nil {
		return f.bulkErr
	}
	return f.Index.BulkSync(ctx, docs)
}

func (f *failingIndex) Search(ctx context.Context, keyword string) ([]domain.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.Index.Search(ctx, keyword)
}

type recordedChange struct {
	entityType domain.EntityType
	action     string
	id         string
}

// recordingEvents captures change and reindex events.
type recordingEvents struct {
	mu      sync.Mutex
	changes []recordedChange
	reindex []domain.TaskStatusRecord
	err     error
}

func (r *recordingEvents) PublishChanged(_ context.Context, t domain.EntityType, action string, entity domain.Indexable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, recordedChange{entityType: t, action: action, id: entity.DocumentID()})
	return r.err
}

func (r *recordingEvents) PublishDeleted(_ context.Context, t domain.EntityType, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, recordedChange{entityType: t, action: "deleted", id: domain.Product{ID: id}.DocumentID()})
	return r.err
}

func (r *recordingEvents) PublishReindexFinished(_ context.Context, _ domain.EntityType, task *domain.TaskStatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reindex = append(r.reindex, *task)
	return r.err
}

var errBoom = errors.New("boom")
