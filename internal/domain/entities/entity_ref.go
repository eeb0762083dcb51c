// Package entities contains core domain data structures.
package entities

import "fmt"

// EntityType identifies which kind of narrative entity a timeline tracks.
// The set is closed: continuity tracking only applies to these three kinds.
type EntityType string

const (
	EntityCharacter    EntityType = "character"
	EntityWikiEntry    EntityType = "wiki_entry"
	EntityRelationship EntityType = "relationship"
)

// ParseEntityType validates and converts a string to an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityCharacter, EntityWikiEntry, EntityRelationship:
		return EntityType(s), nil
	default:
		return "", fmt.Errorf("invalid entity type: %s (valid: character, wiki_entry, relationship)", s)
	}
}

// TrackedEntityRef identifies what a timeline is tracking.
// At most one timeline exists per (project, entity type, entity id).
type TrackedEntityRef struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
}

// Key returns a stable string key for the ref, used for per-timeline locking.
func (r TrackedEntityRef) Key(projectID string) string {
	return projectID + "/" + string(r.EntityType) + "/" + r.EntityID
}
