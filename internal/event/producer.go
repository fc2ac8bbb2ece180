package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/utafrali/catalogue/internal/domain"
	pkgkafka "github.com/utafrali/catalogue/pkg/kafka"
)

// Change actions carried in catalogue topic names.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// SourceCatalogueService identifies events published by this service.
const SourceCatalogueService = "catalogue-service"

// AggregateTypeReindex is the aggregate of reindex lifecycle events.
const AggregateTypeReindex = "reindex"

// Reindex lifecycle topics.
var (
	TopicReindexCompleted = pkgkafka.Topic("catalogue.reindex", "completed")
	TopicReindexFailed    = pkgkafka.Topic("catalogue.reindex", "failed")
)

// ChangeTopic returns the topic for a change of entity type t, e.g.
// "ecommerce.catalogue.product.created".
func ChangeTopic(t domain.EntityType, action string) string {
	return pkgkafka.Topic("catalogue."+t.Singular(), action)
}

// ChangeTopics lists every catalogue change topic.
func ChangeTopics() []string {
	var topics []string
	for _, t := range domain.EntityTypes() {
		for _, action := range []string{ActionCreated, ActionUpdated, ActionDeleted} {
			topics = append(topics, ChangeTopic(t, action))
		}
	}
	return topics
}

// DeletedData is the payload of a *.deleted event.
type DeletedData struct {
	ID int64 `json:"id"`
}

// ReindexData is the payload of a reindex lifecycle event.
type ReindexData struct {
	EntityType domain.EntityType        `json:"entity_type"`
	Task       *domain.TaskStatusRecord `json:"task"`
}

// Publisher sends one event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalogue domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the catalogue service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishChanged publishes a created or updated event carrying the full entity.
func (p *Producer) PublishChanged(ctx context.Context, t domain.EntityType, action string, entity domain.Indexable) error {
	return p.publish(ctx, ChangeTopic(t, action), entity.DocumentID(), t.Singular(), entity)
}

// PublishDeleted publishes a deleted event.
func (p *Producer) PublishDeleted(ctx context.Context, t domain.EntityType, id int64) error {
	return p.publish(ctx, ChangeTopic(t, ActionDeleted), strconv.FormatInt(id, 10), t.Singular(), DeletedData{ID: id})
}

// PublishReindexFinished publishes the outcome of a reindex task.
func (p *Producer) PublishReindexFinished(ctx context.Context, t domain.EntityType, task *domain.TaskStatusRecord) error {
	topic := TopicReindexCompleted
	if task.Status == domain.TaskError {
		topic = TopicReindexFailed
	}
	return p.publish(ctx, topic, task.UUID, AggregateTypeReindex, ReindexData{EntityType: t, Task: task})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceCatalogueService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
