package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
)

func strPtr(s string) *string { return &s }

func newProductIndex() *Index {
	return New(engine.ProductIndex("products_index"), 0)
}

func TestIndex_EnsureIndexIdempotent(t *testing.T) {
	idx := newProductIndex()
	ctx := context.Background()

	require.NoError(t, idx.EnsureIndex(ctx))
	require.NoError(t, idx.EnsureIndex(ctx))
	assert.Equal(t, 1, idx.Creates())
}

func TestIndex_BulkSyncBatches(t *testing.T) {
	idx := newProductIndex()
	docs := make([]domain.Indexable, 0, 230)
	for i := 1; i <= 230; i++ {
		docs = append(docs, domain.Product{ID: int64(i), Title: fmt.Sprintf("p%d", i)})
	}

	require.NoError(t, idx.BulkSync(context.Background(), docs))
	assert.Equal(t, []int{100, 100, 30}, idx.Batches())
	assert.Equal(t, 230, idx.Len())
}

func TestIndex_BulkSyncReplacesByID(t *testing.T) {
	idx := newProductIndex()
	ctx := context.Background()

	require.NoError(t, idx.BulkSync(ctx, []domain.Indexable{domain.Product{ID: 1, Title: "Old hat"}}))
	require.NoError(t, idx.BulkSync(ctx, []domain.Indexable{domain.Product{ID: 1, Title: "New cap"}}))

	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Search(ctx, "cap")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "New cap", hits[0].Title)
}

func TestIndex_SearchRanking(t *testing.T) {
	idx := newProductIndex()
	ctx := context.Background()
	require.NoError(t, idx.BulkSync(ctx, []domain.Indexable{
		domain.Product{ID: 1, Title: "Red socks"},
		domain.Product{ID: 2, Title: "Wool socks", Description: strPtr("warm red wool")},
		domain.Product{ID: 3, Title: "Blue shirt"},
		domain.Product{ID: 4, Title: "Socks", ShortDescription: strPtr("red")},
	}))

	hits, err := idx.Search(ctx, "red socks")
	require.NoError(t, err)

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.EntityID)
	}
	// Product 1 matches both terms in one field; 2 and 4 tie and keep insertion order.
	assert.Equal(t, []int64{1, 2, 4}, ids)
	assert.Equal(t, 2.0, hits[0].Score)
}

func TestIndex_SearchEmptyAndNoMatch(t *testing.T) {
	idx := newProductIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, domain.Product{ID: 1, Title: "Hat"}))

	for _, kw := range []string{"", "   ", "boots"} {
		hits, err := idx.Search(ctx, kw)
		require.NoError(t, err, kw)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	}
}

func TestIndex_CategoryIgnoresUnindexedFields(t *testing.T) {
	idx := New(engine.CategoryIndex("categories_index"), 0)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, domain.Category{ID: 5, Title: "Footwear", Image: strPtr("http://img/boots.png")}))

	hits, err := idx.Search(ctx, "boots")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_DeleteAndDeleteIndex(t *testing.T) {
	idx := newProductIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureIndex(ctx))
	require.NoError(t, idx.Upsert(ctx, domain.Product{ID: 1, Title: "Hat"}))
	require.NoError(t, idx.Upsert(ctx, domain.Product{ID: 2, Title: "Cap"}))

	require.NoError(t, idx.Delete(ctx, "1"))
	require.NoError(t, idx.Delete(ctx, "missing"))
	assert.Equal(t, 1, idx.Len())

	require.NoError(t, idx.DeleteIndex(ctx))
	assert.Equal(t, 0, idx.Len())
	require.NoError(t, idx.EnsureIndex(ctx))
	assert.Equal(t, 2, idx.Creates())
}
