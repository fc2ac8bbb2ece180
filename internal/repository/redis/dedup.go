package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgkafka "github.com/utafrali/catalogue/pkg/kafka"
)

const dedupKeyPrefix = "processed_event__"

// EventDedupStore remembers processed Kafka event IDs in Redis so redelivered
// events are skipped across consumer restarts and replicas.
type EventDedupStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ pkgkafka.IdempotencyStore = (*EventDedupStore)(nil)

// NewEventDedupStore creates a store whose entries expire after ttl.
func NewEventDedupStore(client redis.Cmdable, ttl time.Duration) *EventDedupStore {
	return &EventDedupStore{client: client, ttl: ttl}
}

// Contains reports whether eventID was already processed.
func (s *EventDedupStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Add marks eventID as processed. An existing mark keeps its original expiry.
func (s *EventDedupStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.SetNX(ctx, dedupKeyPrefix+eventID, 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx event %s: %w", eventID, err)
	}
	return nil
}
