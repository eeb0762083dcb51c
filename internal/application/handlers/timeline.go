package handlers

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/domain/services"
	"github.com/ersonp/saga-core/internal/domain/statediff"
)

// TimelineHandler handles timeline operations at the application layer.
// Reads go straight to the timeline service; tracked changes are published
// to the change sink, whose dispatches persist the snapshot and keep the
// derived index and warnings current.
type TimelineHandler struct {
	timelines *services.TimelineService
	db        ports.RelationalDB
	sink      ports.ChangeSink
}

// NewTimelineHandler creates a new timeline handler.
func NewTimelineHandler(timelines *services.TimelineService, db ports.RelationalDB, sink ports.ChangeSink) *TimelineHandler {
	return &TimelineHandler{
		timelines: timelines,
		db:        db,
		sink:      sink,
	}
}

// TrackRequest describes one observed entity change. Reason and SourceText
// are optional context carried onto the snapshot's change records.
type TrackRequest struct {
	EntityType   string
	EntityID     string
	EntityName   string
	ChapterID    string
	ChapterOrder int
	State        entities.StateMap
	Summary      string
	Reason       string
	SourceText   string
}

// TrackResult contains the result of tracking a change.
type TrackResult struct {
	Operation entities.Operation
	SourceID  string
}

// HandleTrack validates and publishes an entity change event. The snapshot
// write itself happens downstream of the event.
func (h *TimelineHandler) HandleTrack(ctx context.Context, projectID string, req TrackRequest) (*TrackResult, error) {
	entityType, err := entities.ParseEntityType(req.EntityType)
	if err != nil {
		return nil, err
	}
	if req.EntityID == "" {
		return nil, &entities.ValidationError{Field: "entity id", Reason: "cannot be empty"}
	}
	if req.ChapterID == "" {
		return nil, &entities.ValidationError{Field: "chapter id", Reason: "cannot be empty"}
	}
	if req.ChapterOrder < 1 {
		return nil, &entities.ValidationError{Field: "chapter order", Reason: "must be positive"}
	}
	if len(req.State) == 0 {
		return nil, &entities.ValidationError{Field: "state", Reason: "cannot be empty"}
	}

	ref := entities.TrackedEntityRef{EntityType: entityType, EntityID: req.EntityID}
	timeline, err := h.db.FindTimeline(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}

	operation := entities.OpCreate
	if timeline != nil {
		operation = entities.OpUpdate
	}

	h.sink.Publish(entities.ChangeEvent{
		Operation:    operation,
		ProjectID:    projectID,
		EntityType:   entityType,
		EntityID:     req.EntityID,
		EntityName:   req.EntityName,
		ChapterID:    req.ChapterID,
		ChapterOrder: req.ChapterOrder,
		State:        req.State,
		Summary:      req.Summary,
		ChangeReason: req.Reason,
		SourceText:   req.SourceText,
	})

	return &TrackResult{Operation: operation, SourceID: req.EntityID}, nil
}

// StateResult contains a reconstructed entity state.
type StateResult struct {
	EntityID     string            `json:"entity_id"`
	ChapterOrder int               `json:"chapter_order,omitempty"`
	State        entities.StateMap `json:"state"`
}

// HandleState returns the entity's state at a chapter order, or the latest
// state when atOrder is zero or negative.
func (h *TimelineHandler) HandleState(ctx context.Context, projectID, entityType, entityID string, atOrder int) (*StateResult, error) {
	ref, err := parseRef(entityType, entityID)
	if err != nil {
		return nil, err
	}

	var state entities.StateMap
	if atOrder > 0 {
		state, err = h.timelines.ReconstructStateAt(ctx, projectID, ref, atOrder)
	} else {
		state, err = h.timelines.LatestState(ctx, projectID, ref)
	}
	if err != nil {
		return nil, err
	}

	return &StateResult{EntityID: entityID, ChapterOrder: atOrder, State: state}, nil
}

// DiffResult contains the field-level changes between two states.
type DiffResult struct {
	FromOrder int                     `json:"from_order"`
	ToOrder   int                     `json:"to_order"`
	Changes   []statediff.FieldChange `json:"changes"`
}

// HandleDiff compares the entity's states at two chapter orders.
func (h *TimelineHandler) HandleDiff(ctx context.Context, projectID, entityType, entityID string, fromOrder, toOrder int) (*DiffResult, error) {
	ref, err := parseRef(entityType, entityID)
	if err != nil {
		return nil, err
	}

	changes, err := h.timelines.DiffStates(ctx, projectID, ref, fromOrder, toOrder)
	if err != nil {
		return nil, err
	}

	return &DiffResult{FromOrder: fromOrder, ToOrder: toOrder, Changes: changes}, nil
}

// HistoryResult contains an entity's snapshot history.
type HistoryResult struct {
	Snapshots []entities.Snapshot `json:"snapshots"`
	Total     int                 `json:"total"`
}

// HandleHistory lists the entity's snapshots ascending by chapter order.
func (h *TimelineHandler) HandleHistory(ctx context.Context, projectID, entityType, entityID string) (*HistoryResult, error) {
	ref, err := parseRef(entityType, entityID)
	if err != nil {
		return nil, err
	}

	snapshots, err := h.timelines.ListSnapshots(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}

	return &HistoryResult{Snapshots: snapshots, Total: len(snapshots)}, nil
}

// SnapshotDetail contains a snapshot and its change records.
type SnapshotDetail struct {
	Snapshot *entities.Snapshot      `json:"snapshot"`
	Records  []entities.ChangeRecord `json:"records"`
}

// HandleSnapshot returns one snapshot with its field-level change records.
func (h *TimelineHandler) HandleSnapshot(ctx context.Context, snapshotID string) (*SnapshotDetail, error) {
	snapshot, records, err := h.timelines.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return &SnapshotDetail{Snapshot: snapshot, Records: records}, nil
}

// HandleForget tears down an entity's timeline and publishes the delete so
// derived data is cleaned up.
func (h *TimelineHandler) HandleForget(ctx context.Context, projectID, entityType, entityID string) error {
	ref, err := parseRef(entityType, entityID)
	if err != nil {
		return err
	}

	if err := h.timelines.DeleteTimeline(ctx, projectID, ref); err != nil {
		return err
	}

	h.sink.Publish(entities.ChangeEvent{
		Operation:  entities.OpDelete,
		ProjectID:  projectID,
		EntityType: ref.EntityType,
		EntityID:   ref.EntityID,
	})
	return nil
}

// parseRef validates an entity type string and builds a tracked ref.
func parseRef(entityType, entityID string) (entities.TrackedEntityRef, error) {
	parsed, err := entities.ParseEntityType(entityType)
	if err != nil {
		return entities.TrackedEntityRef{}, err
	}
	if entityID == "" {
		return entities.TrackedEntityRef{}, &entities.ValidationError{Field: "entity id", Reason: "cannot be empty"}
	}
	return entities.TrackedEntityRef{EntityType: parsed, EntityID: entityID}, nil
}
