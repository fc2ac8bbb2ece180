package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/repository"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
)

// TaskStatusStore keeps serialized task records in memory. Storing bytes
// rather than pointers gives readers the same snapshot semantics as Redis.
type TaskStatusStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ repository.TaskStatusStore = (*TaskStatusStore)(nil)

// NewTaskStatusStore creates an empty in-memory task store.
func NewTaskStatusStore() *TaskStatusStore {
	return &TaskStatusStore{records: make(map[string][]byte)}
}

// Save overwrites the record.
func (s *TaskStatusStore) Save(_ context.Context, rec *domain.TaskStatusRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", rec.UUID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[repository.TaskKey(rec.UUID)] = data
	return nil
}

// Get loads a record by task id.
func (s *TaskStatusStore) Get(_ context.Context, uuid string) (*domain.TaskStatusRecord, error) {
	s.mu.RLock()
	data, ok := s.records[repository.TaskKey(uuid)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("task %s: %w", uuid, apperrors.ErrNotFound)
	}

	var rec domain.TaskStatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", uuid, err)
	}
	return &rec, nil
}
