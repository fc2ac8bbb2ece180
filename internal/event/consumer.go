package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
	pkgkafka "github.com/utafrali/catalogue/pkg/kafka"
)

type change struct {
	entityType domain.EntityType
	action     string
}

var changesByTopic = func() map[string]change {
	m := make(map[string]change)
	for _, t := range domain.EntityTypes() {
		for _, action := range []string{ActionCreated, ActionUpdated, ActionDeleted} {
			m[ChangeTopic(t, action)] = change{entityType: t, action: action}
		}
	}
	return m
}()

// Consumer applies catalogue change events to the search indexes so they stay
// current between full reindexes.
type Consumer struct {
	indexes map[domain.EntityType]engine.IndexManager
	logger  *slog.Logger
}

// NewConsumer creates a consumer writing to the index of each entity type.
func NewConsumer(indexes map[domain.EntityType]engine.IndexManager, logger *slog.Logger) *Consumer {
	return &Consumer{
		indexes: indexes,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	ch, ok := changesByTopic[event.EventType]
	if !ok {
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	idx, ok := c.indexes[ch.entityType]
	if !ok {
		c.logger.WarnContext(ctx, "no index configured for entity type",
			slog.String("entity_type", string(ch.entityType)),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	if ch.action == ActionDeleted {
		var data DeletedData
		if err := event.UnmarshalData(&data); err != nil {
			return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
		}
		if err := idx.Delete(ctx, strconv.FormatInt(data.ID, 10)); err != nil {
			return fmt.Errorf("delete %s %d from index: %w", ch.entityType.Singular(), data.ID, err)
		}
		c.logger.InfoContext(ctx, "removed document from index",
			slog.String("entity_type", string(ch.entityType)),
			slog.Int64("id", data.ID),
		)
		return nil
	}

	doc, err := decodeEntity(ch.entityType, event)
	if err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}
	if err := idx.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("index %s %s: %w", ch.entityType.Singular(), doc.DocumentID(), err)
	}

	c.logger.InfoContext(ctx, "indexed document",
		slog.String("entity_type", string(ch.entityType)),
		slog.String("id", doc.DocumentID()),
		slog.String("action", ch.action),
	)
	return nil
}

func decodeEntity(t domain.EntityType, event *pkgkafka.Event) (domain.Indexable, error) {
	switch t {
	case domain.EntityProduct:
		var p domain.Product
		if err := event.UnmarshalData(&p); err != nil {
			return nil, err
		}
		return p, nil
	case domain.EntityCategory:
		var c domain.Category
		if err := event.UnmarshalData(&c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported entity type %q", t)
	}
}
