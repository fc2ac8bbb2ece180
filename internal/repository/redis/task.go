package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/repository"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
)

// TaskStatusStore implements repository.TaskStatusStore using Redis. Records
// are stored as JSON strings without expiry.
type TaskStatusStore struct {
	client redis.Cmdable
}

var _ repository.TaskStatusStore = (*TaskStatusStore)(nil)

// NewTaskStatusStore creates a new Redis-backed task status store.
func NewTaskStatusStore(client redis.Cmdable) *TaskStatusStore {
	return &TaskStatusStore{client: client}
}

// Save overwrites the record stored under its task key.
func (s *TaskStatusStore) Save(ctx context.Context, rec *domain.TaskStatusRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", rec.UUID, err)
	}

	if err := s.client.Set(ctx, repository.TaskKey(rec.UUID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set task %s: %w", rec.UUID, err)
	}
	return nil
}

// Get loads a record by task id.
func (s *TaskStatusStore) Get(ctx context.Context, uuid string) (*domain.TaskStatusRecord, error) {
	data, err := s.client.Get(ctx, repository.TaskKey(uuid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("task %s: %w", uuid, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get task %s: %w", uuid, err)
	}

	var rec domain.TaskStatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", uuid, err)
	}
	return &rec, nil
}
