// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Timelines (one per tracked entity per project)
	CREATE TABLE IF NOT EXISTS timelines (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(project_id, entity_type, entity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_timelines_project ON timelines(project_id);

	-- Snapshots (keyframe or delta states along a timeline)
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		timeline_id TEXT NOT NULL REFERENCES timelines(id) ON DELETE CASCADE,
		chapter_id TEXT NOT NULL,
		chapter_order INTEGER NOT NULL,
		is_keyframe INTEGER NOT NULL DEFAULT 0,
		state_data TEXT NOT NULL,
		change_summary TEXT,
		change_type TEXT NOT NULL,
		ai_confidence REAL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(timeline_id, chapter_order)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_timeline ON snapshots(timeline_id, chapter_order);

	-- Change records (field-level changes within a snapshot)
	CREATE TABLE IF NOT EXISTS change_records (
		id TEXT PRIMARY KEY,
		snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		field_path TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		change_reason TEXT,
		source_text TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_change_records_snapshot ON change_records(snapshot_id);

	-- Plot loops (open narrative threads)
	CREATE TABLE IF NOT EXISTS plot_loops (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		intro_chapter_id TEXT,
		intro_chapter_order INTEGER NOT NULL DEFAULT 0,
		resolution_chapter_id TEXT,
		resolution_chapter_order INTEGER NOT NULL DEFAULT 0,
		abandon_reason TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_plot_loops_project ON plot_loops(project_id, status);

	-- Consistency warnings (detected or reported issues)
	CREATE TABLE IF NOT EXISTS consistency_warnings (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		entity_id TEXT,
		entity_type TEXT,
		warning_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL,
		suggestion TEXT,
		field_path TEXT,
		expected_value TEXT,
		actual_value TEXT,
		related_entity_ids TEXT,
		resolved INTEGER NOT NULL DEFAULT 0,
		dismissed INTEGER NOT NULL DEFAULT 0,
		resolution_method TEXT,
		resolved_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_warnings_project ON consistency_warnings(project_id, resolved, dismissed);
	CREATE INDEX IF NOT EXISTS idx_warnings_entity ON consistency_warnings(entity_id);

	-- Chapter registry (ids and positions only; text lives elsewhere)
	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		chapter_order INTEGER NOT NULL,
		title TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chapters_project ON chapters(project_id, chapter_order);

	-- Audit log (tracks all actions, including failed dispatches)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		entity_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// FindTimeline finds the timeline for a tracked entity. Returns nil if no
// timeline exists yet.
func (r *Repository) FindTimeline(ctx context.Context, projectID string, ref entities.TrackedEntityRef) (*entities.Timeline, error) {
	query := `
		SELECT id, project_id, entity_type, entity_id, created_at
		FROM timelines
		WHERE project_id = ? AND entity_type = ? AND entity_id = ?
	`
	row := r.db.QueryRowContext(ctx, query, projectID, string(ref.EntityType), ref.EntityID)

	var tl entities.Timeline
	var entityType string
	err := row.Scan(&tl.ID, &tl.ProjectID, &entityType, &tl.EntityID, &tl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning timeline: %w", err)
	}
	tl.EntityType = entities.EntityType(entityType)
	return &tl, nil
}

// FindOrCreateTimeline finds the timeline for a tracked entity or creates it.
// Uses INSERT OR IGNORE followed by SELECT to stay atomic under concurrency.
func (r *Repository) FindOrCreateTimeline(ctx context.Context, projectID string, ref entities.TrackedEntityRef) (*entities.Timeline, error) {
	insertQuery := `
		INSERT OR IGNORE INTO timelines (id, project_id, entity_type, entity_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, insertQuery,
		generateUUID(),
		projectID,
		string(ref.EntityType),
		ref.EntityID,
		timeNow(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting timeline: %w", err)
	}

	tl, err := r.FindTimeline(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	if tl == nil {
		return nil, fmt.Errorf("timeline missing after insert for %s/%s", ref.EntityType, ref.EntityID)
	}
	return tl, nil
}

// DeleteTimeline deletes a timeline; snapshots and change records cascade.
func (r *Repository) DeleteTimeline(ctx context.Context, timelineID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM timelines WHERE id = ?`, timelineID)
	if err != nil {
		return fmt.Errorf("deleting timeline: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &entities.NotFoundError{Resource: "timeline", ID: timelineID}
	}
	return nil
}

// SaveSnapshot persists a snapshot and its change records in one transaction.
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *entities.Snapshot, records []entities.ChangeRecord) error {
	stateJSON, err := json.Marshal(snapshot.StateData)
	if err != nil {
		return fmt.Errorf("marshaling state data: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var confidence sql.NullFloat64
	if snapshot.AIConfidence != nil {
		confidence = sql.NullFloat64{Float64: *snapshot.AIConfidence, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, timeline_id, chapter_id, chapter_order, is_keyframe, state_data, change_summary, change_type, ai_confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snapshot.ID,
		snapshot.TimelineID,
		snapshot.ChapterID,
		snapshot.ChapterOrder,
		snapshot.IsKeyframe,
		string(stateJSON),
		snapshot.ChangeSummary,
		string(snapshot.ChangeType),
		confidence,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	for i := range records {
		oldJSON, err := marshalValue(records[i].OldValue)
		if err != nil {
			return fmt.Errorf("marshaling old value: %w", err)
		}
		newJSON, err := marshalValue(records[i].NewValue)
		if err != nil {
			return fmt.Errorf("marshaling new value: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO change_records (id, snapshot_id, field_path, old_value, new_value, change_reason, source_text, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			records[i].ID,
			records[i].SnapshotID,
			records[i].FieldPath,
			oldJSON,
			newJSON,
			records[i].ChangeReason,
			records[i].SourceText,
			records[i].CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("saving change record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// FindSnapshots lists all snapshots of a timeline, ascending by chapter order.
func (r *Repository) FindSnapshots(ctx context.Context, timelineID string) ([]entities.Snapshot, error) {
	query := `
		SELECT id, timeline_id, chapter_id, chapter_order, is_keyframe, state_data, change_summary, change_type, ai_confidence, created_at
		FROM snapshots
		WHERE timeline_id = ?
		ORDER BY chapter_order ASC
	`
	return r.querySnapshots(ctx, query, timelineID)
}

// FindSnapshotsUpTo lists snapshots at or before maxOrder, ascending.
func (r *Repository) FindSnapshotsUpTo(ctx context.Context, timelineID string, maxOrder int) ([]entities.Snapshot, error) {
	query := `
		SELECT id, timeline_id, chapter_id, chapter_order, is_keyframe, state_data, change_summary, change_type, ai_confidence, created_at
		FROM snapshots
		WHERE timeline_id = ? AND chapter_order <= ?
		ORDER BY chapter_order ASC
	`
	return r.querySnapshots(ctx, query, timelineID, maxOrder)
}

// FindSnapshotByID finds a snapshot by its id. Returns nil if missing.
func (r *Repository) FindSnapshotByID(ctx context.Context, snapshotID string) (*entities.Snapshot, error) {
	query := `
		SELECT id, timeline_id, chapter_id, chapter_order, is_keyframe, state_data, change_summary, change_type, ai_confidence, created_at
		FROM snapshots
		WHERE id = ?
	`
	snapshots, err := r.querySnapshots(ctx, query, snapshotID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// MaxChapterOrder returns the highest chapter order on a timeline.
func (r *Repository) MaxChapterOrder(ctx context.Context, timelineID string) (int, bool, error) {
	var maxOrder sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(chapter_order) FROM snapshots WHERE timeline_id = ?`, timelineID).Scan(&maxOrder)
	if err != nil {
		return 0, false, fmt.Errorf("querying max chapter order: %w", err)
	}
	if !maxOrder.Valid {
		return 0, false, nil
	}
	return int(maxOrder.Int64), true, nil
}

// FindChangeRecords lists the change records of a snapshot.
func (r *Repository) FindChangeRecords(ctx context.Context, snapshotID string) ([]entities.ChangeRecord, error) {
	query := `
		SELECT id, snapshot_id, field_path, old_value, new_value, change_reason, source_text, created_at
		FROM change_records
		WHERE snapshot_id = ?
		ORDER BY field_path ASC
	`
	rows, err := r.db.QueryContext(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("querying change records: %w", err)
	}
	defer rows.Close()

	records := make([]entities.ChangeRecord, 0, 8)
	for rows.Next() {
		var rec entities.ChangeRecord
		var oldJSON, newJSON, reason, source sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.SnapshotID,
			&rec.FieldPath,
			&oldJSON,
			&newJSON,
			&reason,
			&source,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning change record: %w", err)
		}
		rec.ChangeReason = reason.String
		rec.SourceText = source.String

		if rec.OldValue, err = unmarshalValue(oldJSON); err != nil {
			return nil, fmt.Errorf("unmarshaling old value: %w", err)
		}
		if rec.NewValue, err = unmarshalValue(newJSON); err != nil {
			return nil, fmt.Errorf("unmarshaling new value: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// querySnapshots is a helper to execute snapshot queries.
func (r *Repository) querySnapshots(ctx context.Context, query string, args ...any) ([]entities.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]entities.Snapshot, 0, 16)
	for rows.Next() {
		var snap entities.Snapshot
		var stateJSON, changeType string
		var summary sql.NullString
		var confidence sql.NullFloat64

		if err := rows.Scan(
			&snap.ID,
			&snap.TimelineID,
			&snap.ChapterID,
			&snap.ChapterOrder,
			&snap.IsKeyframe,
			&stateJSON,
			&summary,
			&changeType,
			&confidence,
			&snap.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}

		snap.ChangeSummary = summary.String
		snap.ChangeType = entities.ChangeType(changeType)
		if confidence.Valid {
			c := confidence.Float64
			snap.AIConfidence = &c
		}
		if err := json.Unmarshal([]byte(stateJSON), &snap.StateData); err != nil {
			return nil, fmt.Errorf("unmarshaling state data: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// SavePlotLoop inserts a new plot loop.
func (r *Repository) SavePlotLoop(ctx context.Context, loop *entities.PlotLoop) error {
	query := `
		INSERT INTO plot_loops (id, project_id, title, description, status, intro_chapter_id, intro_chapter_order, resolution_chapter_id, resolution_chapter_order, abandon_reason, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		loop.ID,
		loop.ProjectID,
		loop.Title,
		loop.Description,
		string(loop.Status),
		loop.IntroChapterID,
		loop.IntroChapterOrder,
		loop.ResolutionChapterID,
		loop.ResolutionChapterOrder,
		loop.AbandonReason,
		loop.Deleted,
		loop.CreatedAt,
		loop.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving plot loop: %w", err)
	}
	return nil
}

// UpdatePlotLoop updates an existing plot loop row (last write wins).
func (r *Repository) UpdatePlotLoop(ctx context.Context, loop *entities.PlotLoop) error {
	query := `
		UPDATE plot_loops
		SET title = ?, description = ?, status = ?, intro_chapter_id = ?, intro_chapter_order = ?,
		    resolution_chapter_id = ?, resolution_chapter_order = ?, abandon_reason = ?, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	result, err := r.db.ExecContext(ctx, query,
		loop.Title,
		loop.Description,
		string(loop.Status),
		loop.IntroChapterID,
		loop.IntroChapterOrder,
		loop.ResolutionChapterID,
		loop.ResolutionChapterOrder,
		loop.AbandonReason,
		loop.UpdatedAt,
		loop.ID,
	)
	if err != nil {
		return fmt.Errorf("updating plot loop: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &entities.NotFoundError{Resource: "plot loop", ID: loop.ID}
	}
	return nil
}

// FindPlotLoopByID finds a plot loop by id, excluding soft-deleted rows.
func (r *Repository) FindPlotLoopByID(ctx context.Context, id string) (*entities.PlotLoop, error) {
	query := plotLoopSelect + ` WHERE id = ? AND deleted = 0`
	loops, err := r.queryPlotLoops(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(loops) == 0 {
		return nil, nil
	}
	return &loops[0], nil
}

// FindPlotLoopsByProject lists a project's plot loops, newest first.
func (r *Repository) FindPlotLoopsByProject(ctx context.Context, projectID string) ([]entities.PlotLoop, error) {
	query := plotLoopSelect + ` WHERE project_id = ? AND deleted = 0 ORDER BY created_at DESC`
	return r.queryPlotLoops(ctx, query, projectID)
}

// FindPlotLoopsByStatus lists a project's plot loops in any of the given
// statuses, newest first.
func (r *Repository) FindPlotLoopsByStatus(ctx context.Context, projectID string, statuses ...entities.LoopStatus) ([]entities.PlotLoop, error) {
	if len(statuses) == 0 {
		return []entities.PlotLoop{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, projectID)
	for i, s := range statuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	query := fmt.Sprintf(`%s WHERE project_id = ? AND deleted = 0 AND status IN (%s) ORDER BY created_at DESC`,
		plotLoopSelect, strings.Join(placeholders, ","))
	return r.queryPlotLoops(ctx, query, args...)
}

// SoftDeletePlotLoop marks a plot loop deleted without removing the row.
func (r *Repository) SoftDeletePlotLoop(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE plot_loops SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`,
		timeNow(), id)
	if err != nil {
		return fmt.Errorf("deleting plot loop: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &entities.NotFoundError{Resource: "plot loop", ID: id}
	}
	return nil
}

const plotLoopSelect = `
	SELECT id, project_id, title, description, status, intro_chapter_id, intro_chapter_order,
	       resolution_chapter_id, resolution_chapter_order, abandon_reason, deleted, created_at, updated_at
	FROM plot_loops`

// queryPlotLoops is a helper to execute plot loop queries.
func (r *Repository) queryPlotLoops(ctx context.Context, query string, args ...any) ([]entities.PlotLoop, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying plot loops: %w", err)
	}
	defer rows.Close()

	loops := make([]entities.PlotLoop, 0, 16)
	for rows.Next() {
		var loop entities.PlotLoop
		var status string
		var description, introID, resolutionID, reason sql.NullString
		if err := rows.Scan(
			&loop.ID,
			&loop.ProjectID,
			&loop.Title,
			&description,
			&status,
			&introID,
			&loop.IntroChapterOrder,
			&resolutionID,
			&loop.ResolutionChapterOrder,
			&reason,
			&loop.Deleted,
			&loop.CreatedAt,
			&loop.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning plot loop: %w", err)
		}
		loop.Status = entities.LoopStatus(status)
		loop.Description = description.String
		loop.IntroChapterID = introID.String
		loop.ResolutionChapterID = resolutionID.String
		loop.AbandonReason = reason.String
		loops = append(loops, loop)
	}
	return loops, rows.Err()
}

// SaveWarning inserts a new consistency warning.
func (r *Repository) SaveWarning(ctx context.Context, warning *entities.ConsistencyWarning) error {
	related, err := json.Marshal(warning.RelatedEntityIDs)
	if err != nil {
		return fmt.Errorf("marshaling related entity ids: %w", err)
	}

	query := `
		INSERT INTO consistency_warnings (id, project_id, entity_id, entity_type, warning_type, severity, description, suggestion, field_path, expected_value, actual_value, related_entity_ids, resolved, dismissed, resolution_method, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		warning.ID,
		warning.ProjectID,
		warning.EntityID,
		string(warning.EntityType),
		string(warning.WarningType),
		string(warning.Severity),
		warning.Description,
		warning.Suggestion,
		warning.FieldPath,
		warning.ExpectedValue,
		warning.ActualValue,
		string(related),
		warning.Resolved,
		warning.Dismissed,
		warning.ResolutionMethod,
		warning.ResolvedAt,
		warning.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving warning: %w", err)
	}
	return nil
}

// FindWarningByID finds a warning by id. Returns nil if missing.
func (r *Repository) FindWarningByID(ctx context.Context, id string) (*entities.ConsistencyWarning, error) {
	query := warningSelect + ` WHERE id = ?`
	warnings, err := r.queryWarnings(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(warnings) == 0 {
		return nil, nil
	}
	return &warnings[0], nil
}

// MarkWarningResolved marks a warning resolved. Returns false when the
// warning was already resolved or does not exist.
func (r *Repository) MarkWarningResolved(ctx context.Context, id, resolutionMethod string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE consistency_warnings
		SET resolved = 1, resolution_method = ?, resolved_at = ?
		WHERE id = ? AND resolved = 0
	`, resolutionMethod, timeNow(), id)
	if err != nil {
		return false, fmt.Errorf("resolving warning: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// MarkWarningDismissed marks a warning dismissed. Returns false when the
// warning was already dismissed or does not exist.
func (r *Repository) MarkWarningDismissed(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE consistency_warnings
		SET dismissed = 1, resolved_at = ?
		WHERE id = ? AND dismissed = 0
	`, timeNow(), id)
	if err != nil {
		return false, fmt.Errorf("dismissing warning: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ResolveWarningsForEntity resolves every open warning for an entity.
func (r *Repository) ResolveWarningsForEntity(ctx context.Context, entityID, resolutionMethod string) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE consistency_warnings
		SET resolved = 1, resolution_method = ?, resolved_at = ?
		WHERE entity_id = ? AND resolved = 0 AND dismissed = 0
	`, resolutionMethod, timeNow(), entityID)
	if err != nil {
		return 0, fmt.Errorf("resolving warnings for entity: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// DeleteWarningsForEntity hard-deletes all warnings for an entity.
func (r *Repository) DeleteWarningsForEntity(ctx context.Context, entityID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM consistency_warnings WHERE entity_id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("deleting warnings for entity: %w", err)
	}
	return nil
}

// DeleteWarningsForProject hard-deletes all warnings for a project.
func (r *Repository) DeleteWarningsForProject(ctx context.Context, projectID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM consistency_warnings WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("deleting warnings for project: %w", err)
	}
	return nil
}

// ExistsOpenWarning reports whether an open warning of the given type
// already exists for the entity.
func (r *Repository) ExistsOpenWarning(ctx context.Context, projectID, entityID string, warningType entities.WarningType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM consistency_warnings
			WHERE project_id = ? AND entity_id = ? AND warning_type = ? AND resolved = 0 AND dismissed = 0
		)
	`, projectID, entityID, string(warningType)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking open warning: %w", err)
	}
	return exists, nil
}

// FindOpenWarnings lists a project's open warnings, newest first.
func (r *Repository) FindOpenWarnings(ctx context.Context, projectID string) ([]entities.ConsistencyWarning, error) {
	query := warningSelect + ` WHERE project_id = ? AND resolved = 0 AND dismissed = 0 ORDER BY created_at DESC`
	return r.queryWarnings(ctx, query, projectID)
}

// FindOpenWarningsBySeverity lists open warnings of a severity, newest first.
func (r *Repository) FindOpenWarningsBySeverity(ctx context.Context, projectID string, severity entities.Severity) ([]entities.ConsistencyWarning, error) {
	query := warningSelect + ` WHERE project_id = ? AND severity = ? AND resolved = 0 AND dismissed = 0 ORDER BY created_at DESC`
	return r.queryWarnings(ctx, query, projectID, string(severity))
}

// FindOpenWarningsByType lists open warnings of a type, newest first.
func (r *Repository) FindOpenWarningsByType(ctx context.Context, projectID string, warningType entities.WarningType) ([]entities.ConsistencyWarning, error) {
	query := warningSelect + ` WHERE project_id = ? AND warning_type = ? AND resolved = 0 AND dismissed = 0 ORDER BY created_at DESC`
	return r.queryWarnings(ctx, query, projectID, string(warningType))
}

// FindWarningsByEntity lists all warnings for an entity, newest first.
func (r *Repository) FindWarningsByEntity(ctx context.Context, entityID string) ([]entities.ConsistencyWarning, error) {
	query := warningSelect + ` WHERE entity_id = ? ORDER BY created_at DESC`
	return r.queryWarnings(ctx, query, entityID)
}

const warningSelect = `
	SELECT id, project_id, entity_id, entity_type, warning_type, severity, description, suggestion,
	       field_path, expected_value, actual_value, related_entity_ids, resolved, dismissed,
	       resolution_method, resolved_at, created_at
	FROM consistency_warnings`

// queryWarnings is a helper to execute warning queries.
func (r *Repository) queryWarnings(ctx context.Context, query string, args ...any) ([]entities.ConsistencyWarning, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying warnings: %w", err)
	}
	defer rows.Close()

	warnings := make([]entities.ConsistencyWarning, 0, 16)
	for rows.Next() {
		var w entities.ConsistencyWarning
		var entityID, entityType, suggestion, fieldPath, expected, actual, related, method sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&w.ID,
			&w.ProjectID,
			&entityID,
			&entityType,
			&w.WarningType,
			&w.Severity,
			&w.Description,
			&suggestion,
			&fieldPath,
			&expected,
			&actual,
			&related,
			&w.Resolved,
			&w.Dismissed,
			&method,
			&resolvedAt,
			&w.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning warning: %w", err)
		}
		w.EntityID = entityID.String
		w.EntityType = entities.EntityType(entityType.String)
		w.Suggestion = suggestion.String
		w.FieldPath = fieldPath.String
		w.ExpectedValue = expected.String
		w.ActualValue = actual.String
		w.ResolutionMethod = method.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			w.ResolvedAt = &t
		}
		if related.Valid && related.String != "" && related.String != "null" {
			if err := json.Unmarshal([]byte(related.String), &w.RelatedEntityIDs); err != nil {
				return nil, fmt.Errorf("unmarshaling related entity ids: %w", err)
			}
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// SaveChapter inserts or updates a chapter registry entry.
func (r *Repository) SaveChapter(ctx context.Context, chapter *entities.Chapter) error {
	query := `
		INSERT INTO chapters (id, project_id, chapter_order, title, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chapter_order = excluded.chapter_order,
			title = excluded.title
	`
	_, err := r.db.ExecContext(ctx, query,
		chapter.ID,
		chapter.ProjectID,
		chapter.ChapterOrder,
		chapter.Title,
		chapter.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving chapter: %w", err)
	}
	return nil
}

// ChapterExists reports whether a chapter id is registered.
func (r *Repository) ChapterExists(ctx context.Context, chapterID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM chapters WHERE id = ?)`, chapterID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking chapter: %w", err)
	}
	return exists, nil
}

// FindChaptersByProject lists a project's chapters ascending by order.
func (r *Repository) FindChaptersByProject(ctx context.Context, projectID string) ([]entities.Chapter, error) {
	query := `
		SELECT id, project_id, chapter_order, title, created_at
		FROM chapters
		WHERE project_id = ?
		ORDER BY chapter_order ASC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	chapters := make([]entities.Chapter, 0, 16)
	for rows.Next() {
		var ch entities.Chapter
		var title sql.NullString
		if err := rows.Scan(&ch.ID, &ch.ProjectID, &ch.ChapterOrder, &title, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		ch.Title = title.String
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action string, entityID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var entityIDPtr sql.NullString
	if entityID != "" {
		entityIDPtr = sql.NullString{String: entityID, Valid: true}
	}

	query := `INSERT INTO audit_log (action, entity_id, details) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, action, entityIDPtr, detailsJSON)
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for a specific entity.
func (r *Repository) FindAuditLog(ctx context.Context, entityID string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, entity_id, details, created_at
		FROM audit_log
		WHERE entity_id = ?
		ORDER BY created_at DESC
	`
	return r.queryAuditLog(ctx, query, entityID)
}

// FindAuditLogByAction finds audit log entries by action type.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, entity_id, details, created_at
		FROM audit_log
		WHERE action = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	return r.queryAuditLog(ctx, query, action, limit)
}

// queryAuditLog is a helper to execute audit log queries.
func (r *Repository) queryAuditLog(ctx context.Context, query string, args ...any) ([]entities.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var entityID, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entityID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.EntityID = entityID.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// marshalValue encodes a change-record value as JSON text, mapping nil to
// a SQL NULL so absent values stay distinguishable from encoded nulls.
func marshalValue(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue decodes a change-record value from JSON text.
func unmarshalValue(s sql.NullString) (any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, err
	}
	return v, nil
}
