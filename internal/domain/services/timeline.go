// Package services contains the domain business logic.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/domain/statediff"
)

// KeyframeInterval is the keyframe cadence: the first snapshot of a timeline
// and every KeyframeInterval-th after it store the complete state; the rest
// store deltas.
const KeyframeInterval = 5

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// SnapshotInput is one requested state write. State may be the full state or
// just the changed fields; it is applied onto the reconstructed previous
// state, with nil values removing fields.
type SnapshotInput struct {
	EntityType    entities.EntityType
	EntityID      string
	ChapterID     string
	ChapterOrder  int
	State         entities.StateMap
	ChangeSummary string
	ChangeReason  string              // optional, copied onto every change record
	SourceText    string              // optional prose excerpt justifying the change
	ChangeType    entities.ChangeType // derived when empty
	AIConfidence  *float64
}

// TimelineService owns snapshot writes and state reconstruction. Writes to
// the same timeline are serialized through a keyed mutex; writes to distinct
// timelines proceed in parallel.
type TimelineService struct {
	db ports.RelationalDB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTimelineService creates a new timeline service.
func NewTimelineService(db ports.RelationalDB) *TimelineService {
	return &TimelineService{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// timelineLock returns the mutex serializing writes to one timeline.
func (s *TimelineService) timelineLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// WriteSnapshot appends a snapshot to the entity's timeline, creating the
// timeline on first write. Chapter order must be strictly greater than the
// timeline's current maximum. The snapshot and its field-level change
// records are persisted atomically.
func (s *TimelineService) WriteSnapshot(ctx context.Context, projectID string, input SnapshotInput) (*entities.Snapshot, error) {
	if err := ValidateSnapshotInput(projectID, input); err != nil {
		return nil, err
	}

	ref := entities.TrackedEntityRef{EntityType: input.EntityType, EntityID: input.EntityID}
	lock := s.timelineLock(ref.Key(projectID))
	lock.Lock()
	defer lock.Unlock()

	timeline, err := s.db.FindOrCreateTimeline(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.db.FindSnapshots(ctx, timeline.ID)
	if err != nil {
		return nil, err
	}

	if len(snapshots) > 0 {
		maxOrder := snapshots[len(snapshots)-1].ChapterOrder
		if input.ChapterOrder <= maxOrder {
			return nil, &entities.InvalidOrderError{ChapterOrder: input.ChapterOrder, MaxOrder: maxOrder}
		}
	}

	previous := replayAll(snapshots)
	full := statediff.Apply(previous, input.State)

	isKeyframe := len(snapshots)%KeyframeInterval == 0
	stateData := statediff.Diff(previous, full)
	if isKeyframe {
		stateData = statediff.Clone(full)
	}

	changeType := input.ChangeType
	if changeType == "" {
		changeType = entities.ChangeUpdate
		if len(snapshots) == 0 {
			changeType = entities.ChangeInitial
		}
	}

	snapshot := &entities.Snapshot{
		ID:            generateUUID(),
		TimelineID:    timeline.ID,
		ChapterID:     input.ChapterID,
		ChapterOrder:  input.ChapterOrder,
		IsKeyframe:    isKeyframe,
		StateData:     stateData,
		ChangeSummary: input.ChangeSummary,
		ChangeType:    changeType,
		AIConfidence:  input.AIConfidence,
		CreatedAt:     timeNow(),
	}

	changes := statediff.Changes(previous, full)
	records := make([]entities.ChangeRecord, 0, len(changes))
	for _, change := range changes {
		records = append(records, entities.ChangeRecord{
			ID:           generateUUID(),
			SnapshotID:   snapshot.ID,
			FieldPath:    change.FieldPath,
			OldValue:     change.OldValue,
			NewValue:     change.NewValue,
			ChangeReason: input.ChangeReason,
			SourceText:   input.SourceText,
			CreatedAt:    snapshot.CreatedAt,
		})
	}

	if err := s.db.SaveSnapshot(ctx, snapshot, records); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ReconstructStateAt returns the entity's complete state as of the given
// chapter order: the nearest keyframe at or before it, with the following
// deltas applied in ascending order.
func (s *TimelineService) ReconstructStateAt(ctx context.Context, projectID string, ref entities.TrackedEntityRef, chapterOrder int) (entities.StateMap, error) {
	timeline, err := s.db.FindTimeline(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, &entities.NotFoundError{Resource: "timeline", ID: ref.Key(projectID)}
	}

	snapshots, err := s.db.FindSnapshotsUpTo(ctx, timeline.ID, chapterOrder)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, &entities.NotFoundError{Resource: "snapshot at or before chapter order", ID: ref.EntityID}
	}

	return replayFromKeyframe(snapshots), nil
}

// LatestState returns the entity's state after its most recent snapshot.
func (s *TimelineService) LatestState(ctx context.Context, projectID string, ref entities.TrackedEntityRef) (entities.StateMap, error) {
	timeline, err := s.db.FindTimeline(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, &entities.NotFoundError{Resource: "timeline", ID: ref.Key(projectID)}
	}

	maxOrder, ok, err := s.db.MaxChapterOrder(ctx, timeline.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &entities.NotFoundError{Resource: "snapshot", ID: ref.EntityID}
	}

	return s.ReconstructStateAt(ctx, projectID, ref, maxOrder)
}

// DiffStates returns the field-level differences between the entity's states
// at two chapter orders.
func (s *TimelineService) DiffStates(ctx context.Context, projectID string, ref entities.TrackedEntityRef, fromOrder, toOrder int) ([]statediff.FieldChange, error) {
	fromState, err := s.ReconstructStateAt(ctx, projectID, ref, fromOrder)
	if err != nil {
		return nil, err
	}
	toState, err := s.ReconstructStateAt(ctx, projectID, ref, toOrder)
	if err != nil {
		return nil, err
	}
	return statediff.Changes(fromState, toState), nil
}

// ListSnapshots lists the entity's snapshots ascending by chapter order.
func (s *TimelineService) ListSnapshots(ctx context.Context, projectID string, ref entities.TrackedEntityRef) ([]entities.Snapshot, error) {
	timeline, err := s.db.FindTimeline(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, &entities.NotFoundError{Resource: "timeline", ID: ref.Key(projectID)}
	}
	return s.db.FindSnapshots(ctx, timeline.ID)
}

// GetSnapshot returns a snapshot and its change records.
func (s *TimelineService) GetSnapshot(ctx context.Context, snapshotID string) (*entities.Snapshot, []entities.ChangeRecord, error) {
	snapshot, err := s.db.FindSnapshotByID(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}
	if snapshot == nil {
		return nil, nil, &entities.NotFoundError{Resource: "snapshot", ID: snapshotID}
	}

	records, err := s.db.FindChangeRecords(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}
	return snapshot, records, nil
}

// DeleteTimeline removes the entity's timeline with all snapshots and
// change records. Used only on explicit teardown.
func (s *TimelineService) DeleteTimeline(ctx context.Context, projectID string, ref entities.TrackedEntityRef) error {
	timeline, err := s.db.FindTimeline(ctx, projectID, ref)
	if err != nil {
		return err
	}
	if timeline == nil {
		return &entities.NotFoundError{Resource: "timeline", ID: ref.Key(projectID)}
	}

	lock := s.timelineLock(ref.Key(projectID))
	lock.Lock()
	defer lock.Unlock()

	return s.db.DeleteTimeline(ctx, timeline.ID)
}

// ValidateSnapshotInput checks the required snapshot write fields.
func ValidateSnapshotInput(projectID string, input SnapshotInput) error {
	if projectID == "" {
		return &entities.ValidationError{Field: "project id", Reason: "cannot be empty"}
	}
	if _, err := entities.ParseEntityType(string(input.EntityType)); err != nil {
		return &entities.ValidationError{Field: "entity type", Reason: "must be one of: character, wiki_entry, relationship"}
	}
	if input.EntityID == "" {
		return &entities.ValidationError{Field: "entity id", Reason: "cannot be empty"}
	}
	if input.ChapterID == "" {
		return &entities.ValidationError{Field: "chapter id", Reason: "cannot be empty"}
	}
	if input.ChapterOrder < 1 {
		return &entities.ValidationError{Field: "chapter order", Reason: "must be positive"}
	}
	return nil
}

// replayAll replays a full ascending snapshot list into the final state.
func replayAll(snapshots []entities.Snapshot) entities.StateMap {
	state := entities.StateMap{}
	for i := range snapshots {
		if snapshots[i].IsKeyframe {
			state = statediff.Clone(snapshots[i].StateData)
		} else {
			state = statediff.Apply(state, snapshots[i].StateData)
		}
	}
	return state
}

// replayFromKeyframe replays an ascending snapshot list starting at the last
// keyframe, skipping everything before it.
func replayFromKeyframe(snapshots []entities.Snapshot) entities.StateMap {
	start := 0
	for i := range snapshots {
		if snapshots[i].IsKeyframe {
			start = i
		}
	}

	state := statediff.Clone(snapshots[start].StateData)
	for i := start + 1; i < len(snapshots); i++ {
		state = statediff.Apply(state, snapshots[i].StateData)
	}
	return state
}
