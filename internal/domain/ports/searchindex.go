package ports

import "context"

// IndexHit is one result from a derived-index search.
type IndexHit struct {
	SourceID string            `json:"source_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float32           `json:"score"`
}

// SearchIndex is the derived-data collaborator: search chunks keyed by the
// source entity id, invalidated on delete and rebuilt on create/update.
type SearchIndex interface {
	// EnsureCollection creates the index collection if it doesn't exist.
	EnsureCollection(ctx context.Context) error

	// Invalidate removes all derived data for a source id.
	Invalidate(ctx context.Context, sourceID string) error

	// Rebuild replaces the derived data for a source id.
	Rebuild(ctx context.Context, sourceID, content string, metadata map[string]string) error

	// Search finds the closest chunks to a free-text query.
	Search(ctx context.Context, query string, limit int) ([]IndexHit, error)

	// Close releases the index connection.
	Close() error
}
