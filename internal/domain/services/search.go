package services

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
)

// defaultSearchLimit caps searches that don't specify a limit.
const defaultSearchLimit = 10

// SearchService answers free-text questions against the derived index.
type SearchService struct {
	index ports.SearchIndex
}

// NewSearchService creates a new search service.
func NewSearchService(index ports.SearchIndex) *SearchService {
	return &SearchService{index: index}
}

// Search finds the indexed chunks closest to the query.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]ports.IndexHit, error) {
	if query == "" {
		return nil, &entities.ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if limit < 1 {
		limit = defaultSearchLimit
	}
	return s.index.Search(ctx, query, limit)
}
