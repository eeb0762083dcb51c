package entities

// Operation is the kind of mutation a change event describes.
type Operation string

const (
	OpCreate       Operation = "create"
	OpUpdate       Operation = "update"
	OpStatusChange Operation = "status_change"
	OpDelete       Operation = "delete"
)

// ChangeEvent is published after a mutation's transaction has committed.
// The fabric fans it out to its side effects; the mutation's caller never
// waits on any of them.
//
// Entity mutations carry the tracked ref plus the current full or changed
// state. Plot loop lifecycle events carry the loop fields instead; a
// resolve event carries the resolution chapter so referential integrity
// can be validated downstream.
type ChangeEvent struct {
	Operation    Operation  `json:"operation"`
	ProjectID    string     `json:"project_id"`
	EntityType   EntityType `json:"entity_type,omitempty"`
	EntityID     string     `json:"entity_id,omitempty"`
	EntityName   string     `json:"entity_name,omitempty"`
	ChapterID    string     `json:"chapter_id,omitempty"`
	ChapterOrder int        `json:"chapter_order,omitempty"`
	ChangeType   ChangeType `json:"change_type,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	ChangeReason string     `json:"change_reason,omitempty"`
	SourceText   string     `json:"source_text,omitempty"`
	State        StateMap   `json:"state,omitempty"`
	AIConfidence *float64   `json:"ai_confidence,omitempty"`

	PlotLoopID          string     `json:"plot_loop_id,omitempty"`
	Title               string     `json:"title,omitempty"`
	Status              LoopStatus `json:"status,omitempty"`
	PreviousStatus      LoopStatus `json:"previous_status,omitempty"`
	ResolutionChapterID string     `json:"resolution_chapter_id,omitempty"`
}

// HasTrackedRef reports whether the event refers to a timeline-tracked
// entity (as opposed to a plot loop lifecycle event).
func (e *ChangeEvent) HasTrackedRef() bool {
	return e.EntityType != "" && e.EntityID != ""
}

// Ref returns the tracked entity reference for the event.
func (e *ChangeEvent) Ref() TrackedEntityRef {
	return TrackedEntityRef{EntityType: e.EntityType, EntityID: e.EntityID}
}

// SourceID returns the id that keys derived data (search chunks) for the
// event's subject.
func (e *ChangeEvent) SourceID() string {
	if e.PlotLoopID != "" {
		return e.PlotLoopID
	}
	return e.EntityID
}
