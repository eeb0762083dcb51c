package entities

import "time"

// ChangeType indicates why a snapshot was written.
type ChangeType string

const (
	ChangeInitial     ChangeType = "initial"
	ChangeUpdate      ChangeType = "update"
	ChangeMajorChange ChangeType = "major_change"
)

// Timeline owns the ordered snapshot history for one tracked entity.
// Created lazily on first snapshot; deleted only on explicit teardown,
// which cascades to snapshots and change records.
type Timeline struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Ref returns the tracked entity reference for the timeline.
func (t *Timeline) Ref() TrackedEntityRef {
	return TrackedEntityRef{EntityType: t.EntityType, EntityID: t.EntityID}
}

// Snapshot is one point on a timeline. Keyframes store the complete state;
// deltas store only changed fields, with removed fields marked nil.
// Snapshots are immutable once written: corrections are new snapshots.
type Snapshot struct {
	ID            string     `json:"id"`
	TimelineID    string     `json:"timeline_id"`
	ChapterID     string     `json:"chapter_id"`
	ChapterOrder  int        `json:"chapter_order"`
	IsKeyframe    bool       `json:"is_keyframe"`
	StateData     StateMap   `json:"state_data"`
	ChangeSummary string     `json:"change_summary,omitempty"`
	ChangeType    ChangeType `json:"change_type"`
	AIConfidence  *float64   `json:"ai_confidence,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
