package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
)

// setupTestRepo creates an in-memory SQLite repository for testing.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func charRef(id string) entities.TrackedEntityRef {
	return entities.TrackedEntityRef{EntityType: entities.EntityCharacter, EntityID: id}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	repo := setupTestRepo(t)

	// Running it again must not fail
	assert.NoError(t, repo.EnsureSchema(context.Background()))
}

func TestFindOrCreateTimeline(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tl, err := repo.FindOrCreateTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)
	require.NotNil(t, tl)
	assert.Equal(t, "proj-1", tl.ProjectID)
	assert.Equal(t, entities.EntityCharacter, tl.EntityType)
	assert.Equal(t, "char-1", tl.EntityID)

	// Same key returns the same timeline
	again, err := repo.FindOrCreateTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)
	assert.Equal(t, tl.ID, again.ID)

	// Different entity type yields a distinct timeline
	other, err := repo.FindOrCreateTimeline(ctx, "proj-1", entities.TrackedEntityRef{
		EntityType: entities.EntityWikiEntry,
		EntityID:   "char-1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, tl.ID, other.ID)
}

func TestFindTimelineMissing(t *testing.T) {
	repo := setupTestRepo(t)

	tl, err := repo.FindTimeline(context.Background(), "proj-1", charRef("ghost"))
	require.NoError(t, err)
	assert.Nil(t, tl)
}

func TestSaveAndFindSnapshots(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tl, err := repo.FindOrCreateTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)

	snap := &entities.Snapshot{
		ID:           generateUUID(),
		TimelineID:   tl.ID,
		ChapterID:    "ch-1",
		ChapterOrder: 1,
		IsKeyframe:   true,
		StateData:    entities.StateMap{"name": "Aria", "location": "Harbor"},
		ChangeType:   entities.ChangeInitial,
		CreatedAt:    time.Now(),
	}
	records := []entities.ChangeRecord{
		{
			ID:         generateUUID(),
			SnapshotID: snap.ID,
			FieldPath:  "name",
			NewValue:   "Aria",
			CreatedAt:  time.Now(),
		},
	}
	require.NoError(t, repo.SaveSnapshot(ctx, snap, records))

	snapshots, err := repo.FindSnapshots(ctx, tl.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.True(t, snapshots[0].IsKeyframe)
	assert.Equal(t, "Aria", snapshots[0].StateData["name"])
	assert.Equal(t, entities.ChangeInitial, snapshots[0].ChangeType)

	got, err := repo.FindChangeRecords(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "name", got[0].FieldPath)
	assert.Nil(t, got[0].OldValue)
	assert.Equal(t, "Aria", got[0].NewValue)
}

func TestSaveSnapshotDuplicateChapterOrder(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tl, err := repo.FindOrCreateTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)

	first := &entities.Snapshot{
		ID:           generateUUID(),
		TimelineID:   tl.ID,
		ChapterID:    "ch-1",
		ChapterOrder: 1,
		IsKeyframe:   true,
		StateData:    entities.StateMap{"name": "Aria"},
		ChangeType:   entities.ChangeInitial,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.SaveSnapshot(ctx, first, nil))

	dup := &entities.Snapshot{
		ID:           generateUUID(),
		TimelineID:   tl.ID,
		ChapterID:    "ch-1b",
		ChapterOrder: 1,
		StateData:    entities.StateMap{"name": "Aria II"},
		ChangeType:   entities.ChangeUpdate,
		CreatedAt:    time.Now(),
	}
	assert.Error(t, repo.SaveSnapshot(ctx, dup, nil))
}

func TestFindSnapshotsUpTo(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tl, err := repo.FindOrCreateTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)

	for i, order := range []int{1, 3, 7} {
		snap := &entities.Snapshot{
			ID:           generateUUID(),
			TimelineID:   tl.ID,
			ChapterID:    "ch",
			ChapterOrder: order,
			IsKeyframe:   i == 0,
			StateData:    entities.StateMap{"order": float64(order)},
			ChangeType:   entities.ChangeUpdate,
			CreatedAt:    time.Now(),
		}
		require.NoError(t, repo.SaveSnapshot(ctx, snap, nil))
	}

	snapshots, err := repo.FindSnapshotsUpTo(ctx, tl.ID, 5)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 1, snapshots[0].ChapterOrder)
	assert.Equal(t, 3, snapshots[1].ChapterOrder)

	maxOrder, ok, err := repo.MaxChapterOrder(ctx, tl.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, maxOrder)
}

func TestMaxChapterOrderEmptyTimeline(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tl, err := repo.FindOrCreateTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)

	_, ok, err := repo.MaxChapterOrder(ctx, tl.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteTimelineCascades(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tl, err := repo.FindOrCreateTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)

	snap := &entities.Snapshot{
		ID:           generateUUID(),
		TimelineID:   tl.ID,
		ChapterID:    "ch-1",
		ChapterOrder: 1,
		IsKeyframe:   true,
		StateData:    entities.StateMap{"name": "Aria"},
		ChangeType:   entities.ChangeInitial,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.SaveSnapshot(ctx, snap, []entities.ChangeRecord{{
		ID:         generateUUID(),
		SnapshotID: snap.ID,
		FieldPath:  "name",
		NewValue:   "Aria",
		CreatedAt:  time.Now(),
	}}))

	require.NoError(t, repo.DeleteTimeline(ctx, tl.ID))

	gone, err := repo.FindTimeline(ctx, "proj-1", charRef("char-1"))
	require.NoError(t, err)
	assert.Nil(t, gone)

	snapshots, err := repo.FindSnapshots(ctx, tl.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshots)

	records, err := repo.FindChangeRecords(ctx, snap.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteTimelineNotFound(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.DeleteTimeline(context.Background(), "missing")
	var notFound *entities.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func newTestLoop(projectID string) *entities.PlotLoop {
	now := time.Now()
	return &entities.PlotLoop{
		ID:                generateUUID(),
		ProjectID:         projectID,
		Title:             "The missing sword",
		Description:       "Aria's sword disappeared at the harbor",
		Status:            entities.LoopOpen,
		IntroChapterID:    "ch-1",
		IntroChapterOrder: 1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestPlotLoopCRUD(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	loop := newTestLoop("proj-1")
	require.NoError(t, repo.SavePlotLoop(ctx, loop))

	found, err := repo.FindPlotLoopByID(ctx, loop.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, loop.Title, found.Title)
	assert.Equal(t, entities.LoopOpen, found.Status)

	found.Status = entities.LoopClosed
	found.ResolutionChapterID = "ch-9"
	found.ResolutionChapterOrder = 9
	found.UpdatedAt = time.Now()
	require.NoError(t, repo.UpdatePlotLoop(ctx, found))

	closed, err := repo.FindPlotLoopByID(ctx, loop.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LoopClosed, closed.Status)
	assert.Equal(t, "ch-9", closed.ResolutionChapterID)
	assert.Equal(t, 9, closed.ResolutionChapterOrder)
}

func TestFindPlotLoopsByStatus(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	open := newTestLoop("proj-1")
	require.NoError(t, repo.SavePlotLoop(ctx, open))

	urgent := newTestLoop("proj-1")
	urgent.ID = generateUUID()
	urgent.Title = "The stolen crown"
	urgent.Status = entities.LoopUrgent
	require.NoError(t, repo.SavePlotLoop(ctx, urgent))

	closed := newTestLoop("proj-1")
	closed.ID = generateUUID()
	closed.Title = "The old feud"
	closed.Status = entities.LoopClosed
	require.NoError(t, repo.SavePlotLoop(ctx, closed))

	active, err := repo.FindPlotLoopsByStatus(ctx, "proj-1", entities.LoopOpen, entities.LoopUrgent)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	none, err := repo.FindPlotLoopsByStatus(ctx, "proj-1")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := repo.FindPlotLoopsByProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSoftDeletePlotLoop(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	loop := newTestLoop("proj-1")
	require.NoError(t, repo.SavePlotLoop(ctx, loop))
	require.NoError(t, repo.SoftDeletePlotLoop(ctx, loop.ID))

	found, err := repo.FindPlotLoopByID(ctx, loop.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Deleting again reports not found
	err = repo.SoftDeletePlotLoop(ctx, loop.ID)
	var notFound *entities.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	// Updates to a deleted loop also report not found
	loop.Title = "changed"
	err = repo.UpdatePlotLoop(ctx, loop)
	assert.ErrorAs(t, err, &notFound)
}

func newTestWarning(projectID, entityID string) *entities.ConsistencyWarning {
	return &entities.ConsistencyWarning{
		ID:          generateUUID(),
		ProjectID:   projectID,
		EntityID:    entityID,
		EntityType:  entities.EntityCharacter,
		WarningType: entities.WarningCharacterInconsistency,
		Severity:    entities.SeverityWarning,
		Description: "Eye color changed without explanation",
		FieldPath:   "appearance.eyes",
		CreatedAt:   time.Now(),
	}
}

func TestWarningLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	w := newTestWarning("proj-1", "char-1")
	w.RelatedEntityIDs = []string{"char-2"}
	require.NoError(t, repo.SaveWarning(ctx, w))

	found, err := repo.FindWarningByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, entities.WarningCharacterInconsistency, found.WarningType)
	assert.Equal(t, entities.SeverityWarning, found.Severity)
	assert.Equal(t, []string{"char-2"}, found.RelatedEntityIDs)
	assert.True(t, found.IsOpen())

	changed, err := repo.MarkWarningResolved(ctx, w.ID, "manual_edit")
	require.NoError(t, err)
	assert.True(t, changed)

	// Resolving twice is a no-op
	changed, err = repo.MarkWarningResolved(ctx, w.ID, "manual_edit")
	require.NoError(t, err)
	assert.False(t, changed)

	resolved, err := repo.FindWarningByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "manual_edit", resolved.ResolutionMethod)
	require.NotNil(t, resolved.ResolvedAt)
	assert.False(t, resolved.IsOpen())
}

func TestMarkWarningDismissed(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	w := newTestWarning("proj-1", "char-1")
	require.NoError(t, repo.SaveWarning(ctx, w))

	changed, err := repo.MarkWarningDismissed(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkWarningDismissed(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	found, err := repo.FindWarningByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, found.Dismissed)
	assert.False(t, found.IsOpen())
}

func TestResolveWarningsForEntity(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveWarning(ctx, newTestWarning("proj-1", "char-1")))
	}
	require.NoError(t, repo.SaveWarning(ctx, newTestWarning("proj-1", "char-2")))

	count, err := repo.ResolveWarningsForEntity(ctx, "char-1", "entity_update")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Second pass finds nothing open
	count, err = repo.ResolveWarningsForEntity(ctx, "char-1", "entity_update")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	open, err := repo.FindOpenWarnings(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "char-2", open[0].EntityID)
}

func TestExistsOpenWarning(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	exists, err := repo.ExistsOpenWarning(ctx, "proj-1", "char-1", entities.WarningCharacterInconsistency)
	require.NoError(t, err)
	assert.False(t, exists)

	w := newTestWarning("proj-1", "char-1")
	require.NoError(t, repo.SaveWarning(ctx, w))

	exists, err = repo.ExistsOpenWarning(ctx, "proj-1", "char-1", entities.WarningCharacterInconsistency)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.MarkWarningResolved(ctx, w.ID, "manual_edit")
	require.NoError(t, err)

	exists, err = repo.ExistsOpenWarning(ctx, "proj-1", "char-1", entities.WarningCharacterInconsistency)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindOpenWarningsFilters(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	w1 := newTestWarning("proj-1", "char-1")
	require.NoError(t, repo.SaveWarning(ctx, w1))

	w2 := newTestWarning("proj-1", "char-2")
	w2.WarningType = entities.WarningTimelineConflict
	w2.Severity = entities.SeverityError
	require.NoError(t, repo.SaveWarning(ctx, w2))

	bySeverity, err := repo.FindOpenWarningsBySeverity(ctx, "proj-1", entities.SeverityError)
	require.NoError(t, err)
	require.Len(t, bySeverity, 1)
	assert.Equal(t, w2.ID, bySeverity[0].ID)

	byType, err := repo.FindOpenWarningsByType(ctx, "proj-1", entities.WarningCharacterInconsistency)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, w1.ID, byType[0].ID)

	byEntity, err := repo.FindWarningsByEntity(ctx, "char-2")
	require.NoError(t, err)
	require.Len(t, byEntity, 1)
	assert.Equal(t, w2.ID, byEntity[0].ID)
}

func TestDeleteWarnings(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveWarning(ctx, newTestWarning("proj-1", "char-1")))
	require.NoError(t, repo.SaveWarning(ctx, newTestWarning("proj-1", "char-2")))
	require.NoError(t, repo.SaveWarning(ctx, newTestWarning("proj-2", "char-3")))

	require.NoError(t, repo.DeleteWarningsForEntity(ctx, "char-1"))
	open, err := repo.FindOpenWarnings(ctx, "proj-1")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	require.NoError(t, repo.DeleteWarningsForProject(ctx, "proj-1"))
	open, err = repo.FindOpenWarnings(ctx, "proj-1")
	require.NoError(t, err)
	assert.Empty(t, open)

	// Other project untouched
	other, err := repo.FindOpenWarnings(ctx, "proj-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestChapterRegistry(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	exists, err := repo.ChapterExists(ctx, "ch-1")
	require.NoError(t, err)
	assert.False(t, exists)

	ch := &entities.Chapter{
		ID:           "ch-1",
		ProjectID:    "proj-1",
		ChapterOrder: 1,
		Title:        "The Harbor",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.SaveChapter(ctx, ch))

	exists, err = repo.ChapterExists(ctx, "ch-1")
	require.NoError(t, err)
	assert.True(t, exists)

	// Upsert on same id
	ch.Title = "The Harbor, Revised"
	ch.ChapterOrder = 2
	require.NoError(t, repo.SaveChapter(ctx, ch))

	chapters, err := repo.FindChaptersByProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "The Harbor, Revised", chapters[0].Title)
	assert.Equal(t, 2, chapters[0].ChapterOrder)
}

func TestAuditLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogAction(ctx, "dispatch_failed", "char-1", map[string]any{
		"dispatch": "consistency_check",
		"error":    "timeout",
	}))
	require.NoError(t, repo.LogAction(ctx, "snapshot_written", "char-1", nil))

	entries, err := repo.FindAuditLog(ctx, "char-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	failed, err := repo.FindAuditLogByAction(ctx, "dispatch_failed", 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "consistency_check", failed[0].Details["dispatch"])
}
