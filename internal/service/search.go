package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/engine"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
)

// MaxKeywordLength is the longest keyword, in characters, a search accepts.
const MaxKeywordLength = 256

// SearchService runs keyword searches against the index of each entity type.
type SearchService struct {
	indexes map[domain.EntityType]engine.IndexManager
	logger  *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(indexes map[domain.EntityType]engine.IndexManager, logger *slog.Logger) *SearchService {
	return &SearchService{
		indexes: indexes,
		logger:  logger,
	}
}

// Search returns the hits for keyword ordered by score. A blank keyword
// yields no hits.
func (s *SearchService) Search(ctx context.Context, t domain.EntityType, keyword string) ([]domain.SearchHit, error) {
	idx, ok := s.indexes[t]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown entity type %q", t))
	}

	keyword = strings.TrimSpace(keyword)
	if utf8.RuneCountInString(keyword) > MaxKeywordLength {
		return nil, apperrors.MalformedQuery(fmt.Sprintf("keyword must be at most %d characters", MaxKeywordLength))
	}
	if strings.ContainsFunc(keyword, unicode.IsControl) {
		return nil, apperrors.MalformedQuery("keyword must not contain control characters")
	}

	hits, err := idx.Search(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", t, err)
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("entity_type", string(t)),
		slog.String("keyword", keyword),
		slog.Int("hits", len(hits)),
	)
	return hits, nil
}
