package engine

import (
	"context"
	"sort"

	"github.com/utafrali/catalogue/internal/domain"
)

// DefaultBatchSize is the maximum number of documents per bulk request.
const DefaultBatchSize = 100

// IndexManager owns one search index and the documents of one entity type.
// Implementations may use Elasticsearch or in-memory storage.
type IndexManager interface {
	// EnsureIndex creates the index with its mapping if it does not exist.
	EnsureIndex(ctx context.Context) error

	// BulkSync writes docs in batches of at most the configured batch size.
	// A failed batch stops the sync; earlier batches stay written.
	BulkSync(ctx context.Context, docs []domain.Indexable) error

	// Search runs a keyword query and returns hits ordered by score.
	Search(ctx context.Context, keyword string) ([]domain.SearchHit, error)

	// Upsert writes a single document.
	Upsert(ctx context.Context, doc domain.Indexable) error

	// Delete removes a document. A missing document is not an error.
	Delete(ctx context.Context, id string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// DeleteIndex drops the whole index. A missing index is not an error.
	DeleteIndex(ctx context.Context) error
}

// SortHits orders hits by score descending. Equal scores keep engine order.
func SortHits(hits []domain.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// BatchSize returns size, or DefaultBatchSize when size is not positive.
func BatchSize(size int) int {
	if size <= 0 {
		return DefaultBatchSize
	}
	return size
}
