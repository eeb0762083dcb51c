package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

// CheckRequest records one TriggerCheck call.
type CheckRequest struct {
	ProjectID  string
	EntityID   string
	EntityType entities.EntityType
	EntityName string
}

// ConsistencyChecker is a mock implementation of ports.ConsistencyChecker.
// Safe for concurrent use.
type ConsistencyChecker struct {
	mu       sync.Mutex
	requests []CheckRequest

	Err error

	// Block, when set, delays TriggerCheck until the context is done.
	// Used to exercise dispatch timeouts.
	Block bool
}

// TriggerCheck records the request and returns the configured error.
func (m *ConsistencyChecker) TriggerCheck(ctx context.Context, projectID, entityID string, entityType entities.EntityType, entityName string) error {
	m.mu.Lock()
	m.requests = append(m.requests, CheckRequest{
		ProjectID:  projectID,
		EntityID:   entityID,
		EntityType: entityType,
		EntityName: entityName,
	})
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.Err
}

// Requests returns a copy of the recorded check requests.
func (m *ConsistencyChecker) Requests() []CheckRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CheckRequest(nil), m.requests...)
}

// ChapterResolver is a mock implementation of ports.ChapterResolver.
type ChapterResolver struct {
	Existing map[string]bool
	Err      error
}

// ChapterExists reports whether the chapter id was configured as existing.
func (m *ChapterResolver) ChapterExists(ctx context.Context, chapterID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return m.Existing[chapterID], nil
}
