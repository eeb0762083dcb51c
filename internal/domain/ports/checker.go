// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

// ConsistencyChecker is the external judgment collaborator. It decides
// whether an entity's latest state contradicts established facts and files
// consistency warnings through the ledger. Implementations own their own
// debouncing and rate limiting and may themselves be asynchronous.
type ConsistencyChecker interface {
	// TriggerCheck requests a consistency check for an entity.
	TriggerCheck(ctx context.Context, projectID, entityID string, entityType entities.EntityType, entityName string) error
}

// ChapterResolver answers referential-integrity questions about chapters.
type ChapterResolver interface {
	// ChapterExists reports whether a chapter id refers to a real chapter.
	ChapterExists(ctx context.Context, chapterID string) (bool, error)
}

// ChangeSink consumes change events after the originating transaction has
// committed. Publish must not block the mutation's caller.
type ChangeSink interface {
	Publish(event entities.ChangeEvent)
}
