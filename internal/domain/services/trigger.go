package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
)

// defaultQueueSize bounds the fabric's event buffer. Publish never blocks;
// events past the buffer are dropped and recorded in the audit log.
const defaultQueueSize = 256

// FabricConfig tunes the trigger fabric.
type FabricConfig struct {
	Workers      int
	QueueSize    int
	CheckTimeout time.Duration
}

// dispatch is one independent side effect of a change event.
type dispatch struct {
	name string
	run  func(ctx context.Context) error
}

// TriggerFabric consumes post-commit change events and fans each one out to
// its side effects: timeline snapshot write, consistency check, resolution
// chapter integrity check, and search index maintenance. Dispatches are
// isolated: one failing, panicking, or timing out never prevents the others,
// and failures are logged and recorded in the audit log for manual replay.
// There is no automatic retry.
type TriggerFabric struct {
	db        ports.RelationalDB
	timelines *TimelineService
	warnings  *WarningService
	index     ports.SearchIndex
	checker   ports.ConsistencyChecker
	resolver  ports.ChapterResolver
	logger    *slog.Logger

	workers      int
	checkTimeout time.Duration
	events       chan entities.ChangeEvent

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewTriggerFabric creates a new trigger fabric. Any collaborator may be nil;
// its dispatches are then skipped.
func NewTriggerFabric(
	db ports.RelationalDB,
	timelines *TimelineService,
	warnings *WarningService,
	index ports.SearchIndex,
	checker ports.ConsistencyChecker,
	resolver ports.ChapterResolver,
	logger *slog.Logger,
	cfg FabricConfig,
) *TriggerFabric {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TriggerFabric{
		db:           db,
		timelines:    timelines,
		warnings:     warnings,
		index:        index,
		checker:      checker,
		resolver:     resolver,
		logger:       logger,
		workers:      cfg.Workers,
		checkTimeout: cfg.CheckTimeout,
		events:       make(chan entities.ChangeEvent, cfg.QueueSize),
	}
}

// Start launches the worker pool.
func (f *TriggerFabric) Start() {
	for i := 0; i < f.workers; i++ {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for event := range f.events {
				f.handle(event)
			}
		}()
	}
}

// Stop drains the queue and waits for in-flight dispatches to finish.
func (f *TriggerFabric) Stop() {
	f.stopOnce.Do(func() {
		close(f.events)
	})
	f.wg.Wait()
}

// Publish enqueues a change event. It never blocks the caller: when the
// queue is full the event is dropped and recorded for manual replay.
func (f *TriggerFabric) Publish(event entities.ChangeEvent) {
	select {
	case f.events <- event:
	default:
		f.logger.Warn("event queue full, dropping event",
			"operation", string(event.Operation),
			"source_id", event.SourceID(),
		)
		f.audit(context.Background(), "event_dropped", event, nil)
	}
}

// handle fans one event out to its dispatches.
func (f *TriggerFabric) handle(event entities.ChangeEvent) {
	ctx := context.Background()
	for _, d := range f.dispatchesFor(event) {
		f.runDispatch(ctx, d, event)
	}
}

// dispatchesFor selects the side effects an event requires.
func (f *TriggerFabric) dispatchesFor(event entities.ChangeEvent) []dispatch {
	var dispatches []dispatch

	if event.HasTrackedRef() {
		switch event.Operation {
		case entities.OpCreate, entities.OpUpdate:
			if f.timelines != nil && event.ChapterID != "" {
				dispatches = append(dispatches, dispatch{"snapshot_write", func(ctx context.Context) error {
					return f.writeSnapshot(ctx, event)
				}})
			}
			if f.checker != nil {
				dispatches = append(dispatches, dispatch{"consistency_check", func(ctx context.Context) error {
					return f.runCheck(ctx, event)
				}})
			}
			if f.index != nil {
				dispatches = append(dispatches, dispatch{"index_rebuild", func(ctx context.Context) error {
					return f.rebuildIndex(ctx, event)
				}})
			}
		case entities.OpDelete:
			if f.index != nil {
				dispatches = append(dispatches, dispatch{"index_invalidate", func(ctx context.Context) error {
					return f.index.Invalidate(ctx, event.SourceID())
				}})
			}
			if f.warnings != nil {
				dispatches = append(dispatches, dispatch{"warning_cleanup", func(ctx context.Context) error {
					return f.warnings.DeleteAllForEntity(ctx, event.EntityID)
				}})
			}
		}
		return dispatches
	}

	// Plot loop lifecycle events.
	switch event.Operation {
	case entities.OpCreate, entities.OpStatusChange:
		if f.resolver != nil && f.warnings != nil && event.ResolutionChapterID != "" {
			dispatches = append(dispatches, dispatch{"resolution_integrity", func(ctx context.Context) error {
				return f.checkResolutionChapter(ctx, event)
			}})
		}
		if f.index != nil {
			dispatches = append(dispatches, dispatch{"index_rebuild", func(ctx context.Context) error {
				return f.rebuildIndex(ctx, event)
			}})
		}
	case entities.OpDelete:
		if f.index != nil {
			dispatches = append(dispatches, dispatch{"index_invalidate", func(ctx context.Context) error {
				return f.index.Invalidate(ctx, event.SourceID())
			}})
		}
		if f.warnings != nil {
			dispatches = append(dispatches, dispatch{"warning_cleanup", func(ctx context.Context) error {
				return f.warnings.DeleteAllForEntity(ctx, event.PlotLoopID)
			}})
		}
	}
	return dispatches
}

// runDispatch runs one dispatch with panic isolation. Failures are logged
// and recorded, never propagated.
func (f *TriggerFabric) runDispatch(ctx context.Context, d dispatch, event entities.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			f.recordFailure(ctx, d.name, event, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := d.run(ctx); err != nil {
		f.recordFailure(ctx, d.name, event, err)
	}
}

// recordFailure logs a failed dispatch and records it for manual replay.
func (f *TriggerFabric) recordFailure(ctx context.Context, name string, event entities.ChangeEvent, err error) {
	f.logger.Error("dispatch failed",
		"dispatch", name,
		"operation", string(event.Operation),
		"source_id", event.SourceID(),
		"error", err,
	)
	f.audit(ctx, "dispatch_failed", event, map[string]any{
		"dispatch": name,
		"error":    err.Error(),
	})
}

// audit writes a fabric record to the audit log.
func (f *TriggerFabric) audit(ctx context.Context, action string, event entities.ChangeEvent, extra map[string]any) {
	if f.db == nil {
		return
	}

	details := map[string]any{
		"operation": string(event.Operation),
	}
	if event.ChapterID != "" {
		details["chapter_id"] = event.ChapterID
	}
	for k, v := range extra {
		details[k] = v
	}

	if err := f.db.LogAction(ctx, action, event.SourceID(), details); err != nil {
		f.logger.Error("writing audit record", "action", action, "error", err)
	}
}

// writeSnapshot appends the event's state to the entity's timeline.
func (f *TriggerFabric) writeSnapshot(ctx context.Context, event entities.ChangeEvent) error {
	_, err := f.timelines.WriteSnapshot(ctx, event.ProjectID, SnapshotInput{
		EntityType:    event.EntityType,
		EntityID:      event.EntityID,
		ChapterID:     event.ChapterID,
		ChapterOrder:  event.ChapterOrder,
		State:         event.State,
		ChangeSummary: event.Summary,
		ChangeReason:  event.ChangeReason,
		SourceText:    event.SourceText,
		ChangeType:    event.ChangeType,
		AIConfidence:  event.AIConfidence,
	})
	return err
}

// runCheck asks the consistency checker to judge the entity, bounded by the
// configured timeout so a slow judgment cannot wedge a worker.
func (f *TriggerFabric) runCheck(ctx context.Context, event entities.ChangeEvent) error {
	checkCtx, cancel := context.WithTimeout(ctx, f.checkTimeout)
	defer cancel()

	return f.checker.TriggerCheck(checkCtx, event.ProjectID, event.EntityID, event.EntityType, event.EntityName)
}

// checkResolutionChapter verifies that a loop's resolution chapter exists
// and files a broken reference warning when it does not.
func (f *TriggerFabric) checkResolutionChapter(ctx context.Context, event entities.ChangeEvent) error {
	exists, err := f.resolver.ChapterExists(ctx, event.ResolutionChapterID)
	if err != nil {
		return fmt.Errorf("resolving chapter %s: %w", event.ResolutionChapterID, err)
	}
	if exists {
		return nil
	}

	open, err := f.warnings.ExistsOpen(ctx, event.ProjectID, event.PlotLoopID, entities.WarningBrokenReference)
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	_, err = f.warnings.Create(ctx, &entities.ConsistencyWarning{
		ProjectID:   event.ProjectID,
		EntityID:    event.PlotLoopID,
		WarningType: entities.WarningBrokenReference,
		Severity:    entities.SeverityError,
		Description: fmt.Sprintf("plot loop %q resolves in chapter %s, which does not exist", event.Title, event.ResolutionChapterID),
		Suggestion:  "register the chapter or re-resolve the loop against an existing one",
	})
	return err
}

// rebuildIndex re-embeds the event's subject into the search index.
func (f *TriggerFabric) rebuildIndex(ctx context.Context, event entities.ChangeEvent) error {
	return f.index.Rebuild(ctx, event.SourceID(), indexContent(event), indexMetadata(event))
}

// indexContent renders the searchable text for an event's subject.
func indexContent(event entities.ChangeEvent) string {
	if !event.HasTrackedRef() {
		return fmt.Sprintf("%s (%s)", event.Title, event.Status)
	}

	content := event.EntityName
	if event.Summary != "" {
		content += "\n" + event.Summary
	}
	if len(event.State) > 0 {
		if stateJSON, err := json.Marshal(event.State); err == nil {
			content += "\n" + string(stateJSON)
		}
	}
	return content
}

// indexMetadata renders the payload metadata for an event's subject.
func indexMetadata(event entities.ChangeEvent) map[string]string {
	meta := map[string]string{
		"project_id": event.ProjectID,
	}
	if event.HasTrackedRef() {
		meta["entity_type"] = string(event.EntityType)
		if event.ChapterID != "" {
			meta["chapter_id"] = event.ChapterID
		}
	} else {
		meta["kind"] = "plot_loop"
		meta["status"] = string(event.Status)
	}
	return meta
}
