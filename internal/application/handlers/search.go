package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/domain/services"
)

// SearchHandler handles semantic queries against the derived index.
type SearchHandler struct {
	search *services.SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// SearchResult contains the result of a search.
type SearchResult struct {
	Query string
	Hits  []ports.IndexHit
}

// Handle searches the index for chunks matching the query.
func (h *SearchHandler) Handle(ctx context.Context, query string, limit int) (*SearchResult, error) {
	hits, err := h.search.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	return &SearchResult{
		Query: query,
		Hits:  hits,
	}, nil
}
