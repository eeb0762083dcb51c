// Package checker provides the LLM-backed consistency checker.
package checker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/domain/statediff"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// defaultDebounce is the minimum interval between checks of the same entity.
const defaultDebounce = 30 * time.Second

// Checker implements ports.ConsistencyChecker by reconstructing the last two
// states of an entity and asking the LLM to judge them for contradictions.
// Findings are filed as warnings; entities with an open warning of the same
// type are skipped to avoid duplicates.
type Checker struct {
	db       ports.RelationalDB
	llm      ports.LLMClient
	debounce time.Duration

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewChecker creates a new consistency checker.
func NewChecker(db ports.RelationalDB, llm ports.LLMClient) *Checker {
	return &Checker{
		db:       db,
		llm:      llm,
		debounce: defaultDebounce,
		lastRun:  make(map[string]time.Time),
	}
}

// SetDebounce overrides the debounce interval. Zero disables debouncing.
func (c *Checker) SetDebounce(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounce = d
}

// TriggerCheck requests a consistency check for an entity. Checks within the
// debounce window of a previous one are silently skipped.
func (c *Checker) TriggerCheck(ctx context.Context, projectID, entityID string, entityType entities.EntityType, entityName string) error {
	key := projectID + "/" + string(entityType) + "/" + entityID
	if !c.shouldRun(key) {
		return nil
	}

	previous, current, err := c.lastTwoStates(ctx, projectID, entityType, entityID)
	if err != nil {
		return err
	}
	if previous == nil {
		// Nothing to compare against yet
		return nil
	}

	issues, err := c.llm.JudgeContinuity(ctx, entityName, previous, current)
	if err != nil {
		return fmt.Errorf("judging continuity: %w", err)
	}
	if len(issues) == 0 {
		return nil
	}

	warningType := warningTypeFor(entityType)
	exists, err := c.db.ExistsOpenWarning(ctx, projectID, entityID, warningType)
	if err != nil {
		return fmt.Errorf("checking existing warnings: %w", err)
	}
	if exists {
		return nil
	}

	for _, issue := range issues {
		warning := &entities.ConsistencyWarning{
			ID:            uuid.New().String(),
			ProjectID:     projectID,
			EntityID:      entityID,
			EntityType:    entityType,
			WarningType:   warningType,
			Severity:      issue.Severity,
			Description:   issue.Description,
			Suggestion:    issue.Suggestion,
			FieldPath:     issue.FieldPath,
			ExpectedValue: issue.Expected,
			ActualValue:   issue.Actual,
			CreatedAt:     timeNow(),
		}
		if err := c.db.SaveWarning(ctx, warning); err != nil {
			return fmt.Errorf("saving warning: %w", err)
		}
	}

	return nil
}

// shouldRun records the check attempt and reports whether it may proceed.
func (c *Checker) shouldRun(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := timeNow()
	if last, ok := c.lastRun[key]; ok && c.debounce > 0 && now.Sub(last) < c.debounce {
		return false
	}
	c.lastRun[key] = now
	return true
}

// lastTwoStates reconstructs the entity's two most recent full states.
// Returns (nil, nil) when the timeline has fewer than two snapshots.
func (c *Checker) lastTwoStates(ctx context.Context, projectID string, entityType entities.EntityType, entityID string) (entities.StateMap, entities.StateMap, error) {
	ref := entities.TrackedEntityRef{EntityType: entityType, EntityID: entityID}
	timeline, err := c.db.FindTimeline(ctx, projectID, ref)
	if err != nil {
		return nil, nil, err
	}
	if timeline == nil {
		return nil, nil, nil
	}

	snapshots, err := c.db.FindSnapshots(ctx, timeline.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(snapshots) < 2 {
		return nil, nil, nil
	}

	var previous, current entities.StateMap
	var state entities.StateMap
	for i := range snapshots {
		if snapshots[i].IsKeyframe {
			state = statediff.Clone(snapshots[i].StateData)
		} else {
			state = statediff.Apply(state, snapshots[i].StateData)
		}
		if i == len(snapshots)-2 {
			previous = statediff.Clone(state)
		}
		if i == len(snapshots)-1 {
			current = state
		}
	}

	return previous, current, nil
}

// warningTypeFor maps an entity type to the warning type its checks file.
func warningTypeFor(entityType entities.EntityType) entities.WarningType {
	switch entityType {
	case entities.EntityWikiEntry:
		return entities.WarningWikiInconsistency
	case entities.EntityRelationship:
		return entities.WarningTimelineConflict
	default:
		return entities.WarningCharacterInconsistency
	}
}
