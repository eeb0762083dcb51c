package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/saga-core/internal/domain/ports"
)

// SearchIndex is a mock implementation of ports.SearchIndex.
// Safe for concurrent use.
type SearchIndex struct {
	mu          sync.Mutex
	Documents   map[string]string
	Invalidated []string

	Hits []ports.IndexHit

	EnsureErr     error
	InvalidateErr error
	RebuildErr    error
	SearchErr     error
}

// NewSearchIndex creates a new mock SearchIndex.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{
		Documents: make(map[string]string),
	}
}

// EnsureCollection returns the configured error.
func (m *SearchIndex) EnsureCollection(ctx context.Context) error {
	return m.EnsureErr
}

// Invalidate removes the stored content for a source id.
func (m *SearchIndex) Invalidate(ctx context.Context, sourceID string) error {
	if m.InvalidateErr != nil {
		return m.InvalidateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Documents, sourceID)
	m.Invalidated = append(m.Invalidated, sourceID)
	return nil
}

// Rebuild stores the content for a source id.
func (m *SearchIndex) Rebuild(ctx context.Context, sourceID, content string, metadata map[string]string) error {
	if m.RebuildErr != nil {
		return m.RebuildErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Documents[sourceID] = content
	return nil
}

// Search returns the configured hits or error.
func (m *SearchIndex) Search(ctx context.Context, query string, limit int) ([]ports.IndexHit, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if limit > 0 && len(m.Hits) > limit {
		return m.Hits[:limit], nil
	}
	return m.Hits, nil
}

// Close releases the index connection.
func (m *SearchIndex) Close() error {
	return nil
}

// Content returns the stored content for a source id.
func (m *SearchIndex) Content(sourceID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.Documents[sourceID]
	return content, ok
}
