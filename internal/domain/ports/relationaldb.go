package ports

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

// RelationalDB defines the interface for relational database operations.
// Timelines, snapshots and change records form a 1:N:N hierarchy; plot
// loops, warnings and chapters are flat tables keyed by generated ids.
type RelationalDB interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Timeline operations

	// FindTimeline finds the timeline for a tracked entity.
	// Returns nil if no timeline exists yet.
	FindTimeline(ctx context.Context, projectID string, ref entities.TrackedEntityRef) (*entities.Timeline, error)

	// FindOrCreateTimeline finds the timeline for a tracked entity or
	// creates it if none exists. At most one timeline exists per
	// (project, entity type, entity id).
	FindOrCreateTimeline(ctx context.Context, projectID string, ref entities.TrackedEntityRef) (*entities.Timeline, error)

	// DeleteTimeline deletes a timeline and cascades to its snapshots and
	// change records. Used only on explicit teardown.
	DeleteTimeline(ctx context.Context, timelineID string) error

	// Snapshot operations

	// SaveSnapshot persists a snapshot and its change records atomically.
	SaveSnapshot(ctx context.Context, snapshot *entities.Snapshot, records []entities.ChangeRecord) error

	// FindSnapshots lists all snapshots of a timeline, ascending by
	// chapter order.
	FindSnapshots(ctx context.Context, timelineID string) ([]entities.Snapshot, error)

	// FindSnapshotsUpTo lists snapshots with chapter order at or before
	// maxOrder, ascending by chapter order.
	FindSnapshotsUpTo(ctx context.Context, timelineID string, maxOrder int) ([]entities.Snapshot, error)

	// FindSnapshotByID finds a snapshot by its id. Returns nil if missing.
	FindSnapshotByID(ctx context.Context, snapshotID string) (*entities.Snapshot, error)

	// FindChangeRecords lists the change records of a snapshot, ordered by
	// field path.
	FindChangeRecords(ctx context.Context, snapshotID string) ([]entities.ChangeRecord, error)

	// MaxChapterOrder returns the highest chapter order on a timeline.
	// The second result is false when the timeline has no snapshots.
	MaxChapterOrder(ctx context.Context, timelineID string) (int, bool, error)

	// Plot loop operations

	// SavePlotLoop inserts a new plot loop.
	SavePlotLoop(ctx context.Context, loop *entities.PlotLoop) error

	// UpdatePlotLoop updates an existing plot loop row (last write wins).
	UpdatePlotLoop(ctx context.Context, loop *entities.PlotLoop) error

	// FindPlotLoopByID finds a plot loop by id. Returns nil if missing or
	// soft-deleted.
	FindPlotLoopByID(ctx context.Context, id string) (*entities.PlotLoop, error)

	// FindPlotLoopsByProject lists a project's plot loops, newest first.
	FindPlotLoopsByProject(ctx context.Context, projectID string) ([]entities.PlotLoop, error)

	// FindPlotLoopsByStatus lists a project's plot loops in any of the
	// given statuses, newest first.
	FindPlotLoopsByStatus(ctx context.Context, projectID string, statuses ...entities.LoopStatus) ([]entities.PlotLoop, error)

	// SoftDeletePlotLoop marks a plot loop deleted without removing the
	// row; warnings may still reference it.
	SoftDeletePlotLoop(ctx context.Context, id string) error

	// Warning operations

	// SaveWarning inserts a new consistency warning.
	SaveWarning(ctx context.Context, warning *entities.ConsistencyWarning) error

	// FindWarningByID finds a warning by id. Returns nil if missing.
	FindWarningByID(ctx context.Context, id string) (*entities.ConsistencyWarning, error)

	// MarkWarningResolved marks a warning resolved. Returns false when the
	// warning was already resolved or does not exist.
	MarkWarningResolved(ctx context.Context, id, resolutionMethod string) (bool, error)

	// MarkWarningDismissed marks a warning dismissed. Returns false when
	// the warning was already dismissed or does not exist.
	MarkWarningDismissed(ctx context.Context, id string) (bool, error)

	// ResolveWarningsForEntity resolves every open warning for an entity.
	// Returns the number of warnings actually changed.
	ResolveWarningsForEntity(ctx context.Context, entityID, resolutionMethod string) (int, error)

	// DeleteWarningsForEntity hard-deletes all warnings for an entity.
	DeleteWarningsForEntity(ctx context.Context, entityID string) error

	// DeleteWarningsForProject hard-deletes all warnings for a project.
	DeleteWarningsForProject(ctx context.Context, projectID string) error

	// ExistsOpenWarning reports whether an unresolved, undismissed warning
	// of the given type already exists for the entity.
	ExistsOpenWarning(ctx context.Context, projectID, entityID string, warningType entities.WarningType) (bool, error)

	// FindOpenWarnings lists a project's open warnings, newest first.
	FindOpenWarnings(ctx context.Context, projectID string) ([]entities.ConsistencyWarning, error)

	// FindOpenWarningsBySeverity lists a project's open warnings of a
	// severity, newest first.
	FindOpenWarningsBySeverity(ctx context.Context, projectID string, severity entities.Severity) ([]entities.ConsistencyWarning, error)

	// FindOpenWarningsByType lists a project's open warnings of a type,
	// newest first.
	FindOpenWarningsByType(ctx context.Context, projectID string, warningType entities.WarningType) ([]entities.ConsistencyWarning, error)

	// FindWarningsByEntity lists all warnings for an entity regardless of
	// resolution state, newest first.
	FindWarningsByEntity(ctx context.Context, entityID string) ([]entities.ConsistencyWarning, error)

	// Chapter registry operations

	// SaveChapter inserts or updates a chapter registry entry.
	SaveChapter(ctx context.Context, chapter *entities.Chapter) error

	// ChapterExists reports whether a chapter id is registered.
	ChapterExists(ctx context.Context, chapterID string) (bool, error)

	// FindChaptersByProject lists a project's chapters ascending by order.
	FindChaptersByProject(ctx context.Context, projectID string) ([]entities.Chapter, error)

	// Audit log operations

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action string, entityID string, details map[string]any) error

	// FindAuditLog finds audit log entries for a specific entity.
	FindAuditLog(ctx context.Context, entityID string) ([]entities.AuditEntry, error)

	// FindAuditLogByAction finds audit log entries by action type.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)
}
