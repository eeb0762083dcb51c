// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

// RelationalDB is an in-memory mock implementation of ports.RelationalDB.
// Safe for concurrent use so fan-out tests can exercise it from workers.
type RelationalDB struct {
	mu sync.Mutex

	Timelines     map[string]*entities.Timeline
	Snapshots     map[string][]entities.Snapshot
	ChangeRecords map[string][]entities.ChangeRecord
	Loops         []*entities.PlotLoop
	Warnings      []*entities.ConsistencyWarning
	Chapters      map[string]*entities.Chapter
	AuditEntries  []entities.AuditEntry

	Err error

	nextTimelineID int
	nextAuditID    int64
}

// NewRelationalDB creates a new mock RelationalDB.
func NewRelationalDB() *RelationalDB {
	return &RelationalDB{
		Timelines:     make(map[string]*entities.Timeline),
		Snapshots:     make(map[string][]entities.Snapshot),
		ChangeRecords: make(map[string][]entities.ChangeRecord),
		Chapters:      make(map[string]*entities.Chapter),
	}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *RelationalDB) Close() error {
	return nil
}

// Timeline methods.

// FindTimeline finds the timeline for a tracked entity.
func (m *RelationalDB) FindTimeline(_ context.Context, projectID string, ref entities.TrackedEntityRef) (*entities.Timeline, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Timelines[ref.Key(projectID)], nil
}

// FindOrCreateTimeline finds or creates the timeline for a tracked entity.
func (m *RelationalDB) FindOrCreateTimeline(_ context.Context, projectID string, ref entities.TrackedEntityRef) (*entities.Timeline, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ref.Key(projectID)
	if tl, ok := m.Timelines[key]; ok {
		return tl, nil
	}

	m.nextTimelineID++
	tl := &entities.Timeline{
		ID:         fmt.Sprintf("timeline-%d", m.nextTimelineID),
		ProjectID:  projectID,
		EntityType: ref.EntityType,
		EntityID:   ref.EntityID,
		CreatedAt:  time.Now(),
	}
	m.Timelines[key] = tl
	return tl, nil
}

// DeleteTimeline deletes a timeline and its snapshots.
func (m *RelationalDB) DeleteTimeline(_ context.Context, timelineID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, tl := range m.Timelines {
		if tl.ID == timelineID {
			delete(m.Timelines, key)
			for _, snap := range m.Snapshots[timelineID] {
				delete(m.ChangeRecords, snap.ID)
			}
			delete(m.Snapshots, timelineID)
			return nil
		}
	}
	return &entities.NotFoundError{Resource: "timeline", ID: timelineID}
}

// Snapshot methods.

// SaveSnapshot persists a snapshot and its change records.
func (m *RelationalDB) SaveSnapshot(_ context.Context, snapshot *entities.Snapshot, records []entities.ChangeRecord) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.Snapshots[snapshot.TimelineID] {
		if existing.ChapterOrder == snapshot.ChapterOrder {
			return fmt.Errorf("snapshot exists at chapter order %d", snapshot.ChapterOrder)
		}
	}

	m.Snapshots[snapshot.TimelineID] = append(m.Snapshots[snapshot.TimelineID], *snapshot)
	sort.Slice(m.Snapshots[snapshot.TimelineID], func(i, j int) bool {
		return m.Snapshots[snapshot.TimelineID][i].ChapterOrder < m.Snapshots[snapshot.TimelineID][j].ChapterOrder
	})
	m.ChangeRecords[snapshot.ID] = append(m.ChangeRecords[snapshot.ID], records...)
	return nil
}

// FindSnapshots lists all snapshots of a timeline, ascending by chapter order.
func (m *RelationalDB) FindSnapshots(_ context.Context, timelineID string) ([]entities.Snapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Snapshot(nil), m.Snapshots[timelineID]...), nil
}

// FindSnapshotsUpTo lists snapshots at or before maxOrder, ascending.
func (m *RelationalDB) FindSnapshotsUpTo(_ context.Context, timelineID string, maxOrder int) ([]entities.Snapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.Snapshot
	for _, snap := range m.Snapshots[timelineID] {
		if snap.ChapterOrder <= maxOrder {
			result = append(result, snap)
		}
	}
	return result, nil
}

// FindSnapshotByID finds a snapshot by its id.
func (m *RelationalDB) FindSnapshotByID(_ context.Context, snapshotID string) (*entities.Snapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, snapshots := range m.Snapshots {
		for i := range snapshots {
			if snapshots[i].ID == snapshotID {
				snap := snapshots[i]
				return &snap, nil
			}
		}
	}
	return nil, nil
}

// MaxChapterOrder returns the highest chapter order on a timeline.
func (m *RelationalDB) MaxChapterOrder(_ context.Context, timelineID string) (int, bool, error) {
	if m.Err != nil {
		return 0, false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := m.Snapshots[timelineID]
	if len(snapshots) == 0 {
		return 0, false, nil
	}
	return snapshots[len(snapshots)-1].ChapterOrder, true, nil
}

// FindChangeRecords lists the change records of a snapshot.
func (m *RelationalDB) FindChangeRecords(_ context.Context, snapshotID string) ([]entities.ChangeRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	records := append([]entities.ChangeRecord(nil), m.ChangeRecords[snapshotID]...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].FieldPath < records[j].FieldPath
	})
	return records, nil
}

// Plot loop methods.

// SavePlotLoop inserts a new plot loop.
func (m *RelationalDB) SavePlotLoop(_ context.Context, loop *entities.PlotLoop) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *loop
	m.Loops = append(m.Loops, &stored)
	return nil
}

// UpdatePlotLoop updates an existing plot loop.
func (m *RelationalDB) UpdatePlotLoop(_ context.Context, loop *entities.PlotLoop) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.Loops {
		if existing.ID == loop.ID && !existing.Deleted {
			updated := *loop
			m.Loops[i] = &updated
			return nil
		}
	}
	return &entities.NotFoundError{Resource: "plot loop", ID: loop.ID}
}

// FindPlotLoopByID finds a plot loop by id, excluding soft-deleted rows.
func (m *RelationalDB) FindPlotLoopByID(_ context.Context, id string) (*entities.PlotLoop, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, loop := range m.Loops {
		if loop.ID == id && !loop.Deleted {
			found := *loop
			return &found, nil
		}
	}
	return nil, nil
}

// FindPlotLoopsByProject lists a project's plot loops.
func (m *RelationalDB) FindPlotLoopsByProject(_ context.Context, projectID string) ([]entities.PlotLoop, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.PlotLoop
	for _, loop := range m.Loops {
		if loop.ProjectID == projectID && !loop.Deleted {
			result = append(result, *loop)
		}
	}
	return result, nil
}

// FindPlotLoopsByStatus lists a project's plot loops in any of the statuses.
func (m *RelationalDB) FindPlotLoopsByStatus(_ context.Context, projectID string, statuses ...entities.LoopStatus) ([]entities.PlotLoop, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.PlotLoop
	for _, loop := range m.Loops {
		if loop.ProjectID != projectID || loop.Deleted {
			continue
		}
		for _, status := range statuses {
			if loop.Status == status {
				result = append(result, *loop)
				break
			}
		}
	}
	return result, nil
}

// SoftDeletePlotLoop marks a plot loop deleted.
func (m *RelationalDB) SoftDeletePlotLoop(_ context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, loop := range m.Loops {
		if loop.ID == id && !loop.Deleted {
			loop.Deleted = true
			return nil
		}
	}
	return &entities.NotFoundError{Resource: "plot loop", ID: id}
}

// Warning methods.

// SaveWarning inserts a new consistency warning.
func (m *RelationalDB) SaveWarning(_ context.Context, warning *entities.ConsistencyWarning) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *warning
	m.Warnings = append(m.Warnings, &stored)
	return nil
}

// FindWarningByID finds a warning by id.
func (m *RelationalDB) FindWarningByID(_ context.Context, id string) (*entities.ConsistencyWarning, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Warnings {
		if w.ID == id {
			found := *w
			return &found, nil
		}
	}
	return nil, nil
}

// MarkWarningResolved marks a warning resolved.
func (m *RelationalDB) MarkWarningResolved(_ context.Context, id, resolutionMethod string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Warnings {
		if w.ID == id && !w.Resolved {
			w.Resolved = true
			w.ResolutionMethod = resolutionMethod
			now := time.Now()
			w.ResolvedAt = &now
			return true, nil
		}
	}
	return false, nil
}

// MarkWarningDismissed marks a warning dismissed.
func (m *RelationalDB) MarkWarningDismissed(_ context.Context, id string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Warnings {
		if w.ID == id && !w.Dismissed {
			w.Dismissed = true
			now := time.Now()
			w.ResolvedAt = &now
			return true, nil
		}
	}
	return false, nil
}

// ResolveWarningsForEntity resolves every open warning for an entity.
func (m *RelationalDB) ResolveWarningsForEntity(_ context.Context, entityID, resolutionMethod string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, w := range m.Warnings {
		if w.EntityID == entityID && w.IsOpen() {
			w.Resolved = true
			w.ResolutionMethod = resolutionMethod
			now := time.Now()
			w.ResolvedAt = &now
			count++
		}
	}
	return count, nil
}

// DeleteWarningsForEntity hard-deletes all warnings for an entity.
func (m *RelationalDB) DeleteWarningsForEntity(_ context.Context, entityID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.Warnings[:0]
	for _, w := range m.Warnings {
		if w.EntityID != entityID {
			kept = append(kept, w)
		}
	}
	m.Warnings = kept
	return nil
}

// DeleteWarningsForProject hard-deletes all warnings for a project.
func (m *RelationalDB) DeleteWarningsForProject(_ context.Context, projectID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.Warnings[:0]
	for _, w := range m.Warnings {
		if w.ProjectID != projectID {
			kept = append(kept, w)
		}
	}
	m.Warnings = kept
	return nil
}

// ExistsOpenWarning reports whether an open warning of the type exists.
func (m *RelationalDB) ExistsOpenWarning(_ context.Context, projectID, entityID string, warningType entities.WarningType) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Warnings {
		if w.ProjectID == projectID && w.EntityID == entityID && w.WarningType == warningType && w.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

// FindOpenWarnings lists a project's open warnings.
func (m *RelationalDB) FindOpenWarnings(_ context.Context, projectID string) ([]entities.ConsistencyWarning, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.ConsistencyWarning
	for _, w := range m.Warnings {
		if w.ProjectID == projectID && w.IsOpen() {
			result = append(result, *w)
		}
	}
	return result, nil
}

// FindOpenWarningsBySeverity lists open warnings of a severity.
func (m *RelationalDB) FindOpenWarningsBySeverity(_ context.Context, projectID string, severity entities.Severity) ([]entities.ConsistencyWarning, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.ConsistencyWarning
	for _, w := range m.Warnings {
		if w.ProjectID == projectID && w.Severity == severity && w.IsOpen() {
			result = append(result, *w)
		}
	}
	return result, nil
}

// FindOpenWarningsByType lists open warnings of a type.
func (m *RelationalDB) FindOpenWarningsByType(_ context.Context, projectID string, warningType entities.WarningType) ([]entities.ConsistencyWarning, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.ConsistencyWarning
	for _, w := range m.Warnings {
		if w.ProjectID == projectID && w.WarningType == warningType && w.IsOpen() {
			result = append(result, *w)
		}
	}
	return result, nil
}

// FindWarningsByEntity lists all warnings for an entity.
func (m *RelationalDB) FindWarningsByEntity(_ context.Context, entityID string) ([]entities.ConsistencyWarning, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.ConsistencyWarning
	for _, w := range m.Warnings {
		if w.EntityID == entityID {
			result = append(result, *w)
		}
	}
	return result, nil
}

// Chapter methods.

// SaveChapter inserts or updates a chapter registry entry.
func (m *RelationalDB) SaveChapter(_ context.Context, chapter *entities.Chapter) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *chapter
	m.Chapters[chapter.ID] = &stored
	return nil
}

// ChapterExists reports whether a chapter id is registered.
func (m *RelationalDB) ChapterExists(_ context.Context, chapterID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.Chapters[chapterID]
	return ok, nil
}

// FindChaptersByProject lists a project's chapters ascending by order.
func (m *RelationalDB) FindChaptersByProject(_ context.Context, projectID string) ([]entities.Chapter, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.Chapter
	for _, ch := range m.Chapters {
		if ch.ProjectID == projectID {
			result = append(result, *ch)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChapterOrder < result[j].ChapterOrder
	})
	return result, nil
}

// Audit log methods.

// LogAction logs an action to the audit log.
func (m *RelationalDB) LogAction(_ context.Context, action string, entityID string, details map[string]any) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAuditID++
	m.AuditEntries = append(m.AuditEntries, entities.AuditEntry{
		ID:        m.nextAuditID,
		Action:    action,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

// FindAuditLog finds audit log entries for a specific entity.
func (m *RelationalDB) FindAuditLog(_ context.Context, entityID string) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.AuditEntry
	for _, entry := range m.AuditEntries {
		if entry.EntityID == entityID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// FindAuditLogByAction finds audit log entries by action type.
func (m *RelationalDB) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entities.AuditEntry
	for _, entry := range m.AuditEntries {
		if entry.Action == action {
			result = append(result, entry)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}
