package memory

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/repository"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
)

// accessors exposes the bookkeeping fields of a catalogue entity.
type accessors[T any] struct {
	id      func(*T) int64
	created func(*T) time.Time
	stamp   func(e *T, id int64, created, updated time.Time)
}

// Store is an in-memory repository.Repository keyed by ID. Listing returns
// entities in ascending ID order.
type Store[T any] struct {
	mu       sync.RWMutex
	resource string
	acc      accessors[T]
	nextID   int64
	items    map[int64]T
	now      func() time.Time
}

// NewProductRepository creates an empty in-memory product repository.
func NewProductRepository() *Store[domain.Product] {
	return newStore("product", accessors[domain.Product]{
		id:      func(p *domain.Product) int64 { return p.ID },
		created: func(p *domain.Product) time.Time { return p.CreatedAt },
		stamp: func(p *domain.Product, id int64, created, updated time.Time) {
			p.ID, p.CreatedAt, p.UpdatedAt = id, created, updated
		},
	})
}

// NewCategoryRepository creates an empty in-memory category repository.
func NewCategoryRepository() *Store[domain.Category] {
	return newStore("category", accessors[domain.Category]{
		id:      func(c *domain.Category) int64 { return c.ID },
		created: func(c *domain.Category) time.Time { return c.CreatedAt },
		stamp: func(c *domain.Category, id int64, created, updated time.Time) {
			c.ID, c.CreatedAt, c.UpdatedAt = id, created, updated
		},
	})
}

var (
	_ repository.ProductRepository  = (*Store[domain.Product])(nil)
	_ repository.CategoryRepository = (*Store[domain.Category])(nil)
)

func newStore[T any](resource string, acc accessors[T]) *Store[T] {
	return &Store[T]{
		resource: resource,
		acc:      acc,
		items:    make(map[int64]T),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store[T]) notFound(id int64) error {
	return apperrors.NotFound(s.resource, strconv.FormatInt(id, 10))
}

// Create assigns the next ID and timestamps to e.
func (s *Store[T]) Create(_ context.Context, e *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	s.acc.stamp(e, s.nextID, now, now)
	s.items[s.nextID] = *e
	return nil
}

func (s *Store[T]) GetByID(_ context.Context, id int64) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return nil, s.notFound(id)
	}
	return &e, nil
}

func (s *Store[T]) sorted() []T {
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out
}

func (s *Store[T]) List(_ context.Context, offset, limit int) ([]T, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted()
	offset = min(max(offset, 0), len(all))
	end := min(offset+max(limit, 0), len(all))
	return all[offset:end], len(all), nil
}

func (s *Store[T]) ListAll(context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

// Update replaces the stored entity, keeping its creation time.
func (s *Store[T]) Update(_ context.Context, e *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.acc.id(e)
	old, ok := s.items[id]
	if !ok {
		return s.notFound(id)
	}
	s.acc.stamp(e, id, s.acc.created(&old), s.now())
	s.items[id] = *e
	return nil
}

func (s *Store[T]) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return s.notFound(id)
	}
	delete(s.items, id)
	return nil
}
