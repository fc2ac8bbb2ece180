package repository

import (
	"context"

	"github.com/utafrali/catalogue/internal/domain"
)

// Repository is the relational persistence contract of one catalogue entity.
type Repository[T any] interface {
	// Create inserts entity and fills in its generated ID and timestamps.
	Create(ctx context.Context, entity *T) error

	// GetByID retrieves an entity. A missing entity yields a NotFound AppError.
	GetByID(ctx context.Context, id int64) (*T, error)

	// List returns one page of entities ordered by ID and the total count.
	List(ctx context.Context, offset, limit int) ([]T, int, error)

	// ListAll returns every entity ordered by ID.
	ListAll(ctx context.Context) ([]T, error)

	// Update overwrites the writable fields of entity and refreshes its timestamps.
	Update(ctx context.Context, entity *T) error

	// Delete removes an entity by its ID.
	Delete(ctx context.Context, id int64) error
}

// ProductRepository persists products.
type ProductRepository = Repository[domain.Product]

// CategoryRepository persists categories.
type CategoryRepository = Repository[domain.Category]

// TaskStatusStore persists background task records without expiry.
type TaskStatusStore interface {
	// Save overwrites the stored record.
	Save(ctx context.Context, record *domain.TaskStatusRecord) error

	// Get returns the record or an error wrapping apperrors.ErrNotFound.
	Get(ctx context.Context, uuid string) (*domain.TaskStatusRecord, error)
}

// TaskKeyPrefix prefixes every task record key.
const TaskKeyPrefix = "background_task__"

// TaskKey returns the storage key of a task record.
func TaskKey(uuid string) string {
	return TaskKeyPrefix + uuid
}
