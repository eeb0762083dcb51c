package services

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
)

// escalationThreshold is how many chapters a loop may stay open before an
// escalation sweep marks it urgent.
const escalationThreshold = 10

// PlotLoopService manages the plot loop lifecycle. Every successful mutation
// emits a change event to the sink after the write has committed.
type PlotLoopService struct {
	db   ports.RelationalDB
	sink ports.ChangeSink
}

// NewPlotLoopService creates a new plot loop service. The sink may be nil
// when no fabric is attached.
func NewPlotLoopService(db ports.RelationalDB, sink ports.ChangeSink) *PlotLoopService {
	return &PlotLoopService{db: db, sink: sink}
}

// publish sends a change event to the sink if one is attached.
func (s *PlotLoopService) publish(event entities.ChangeEvent) {
	if s.sink != nil {
		s.sink.Publish(event)
	}
}

// Create opens a new plot loop.
func (s *PlotLoopService) Create(ctx context.Context, projectID, title, description, introChapterID string, introChapterOrder int) (*entities.PlotLoop, error) {
	if projectID == "" {
		return nil, &entities.ValidationError{Field: "project id", Reason: "cannot be empty"}
	}
	if title == "" {
		return nil, &entities.ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if introChapterOrder < 0 {
		return nil, &entities.ValidationError{Field: "intro chapter order", Reason: "cannot be negative"}
	}

	now := timeNow()
	loop := &entities.PlotLoop{
		ID:                generateUUID(),
		ProjectID:         projectID,
		Title:             title,
		Description:       description,
		Status:            entities.LoopOpen,
		IntroChapterID:    introChapterID,
		IntroChapterOrder: introChapterOrder,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.db.SavePlotLoop(ctx, loop); err != nil {
		return nil, err
	}

	s.publish(entities.ChangeEvent{
		Operation:  entities.OpCreate,
		ProjectID:  projectID,
		PlotLoopID: loop.ID,
		Title:      loop.Title,
		Status:     loop.Status,
	})
	return loop, nil
}

// Get returns a plot loop by id.
func (s *PlotLoopService) Get(ctx context.Context, id string) (*entities.PlotLoop, error) {
	loop, err := s.db.FindPlotLoopByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loop == nil {
		return nil, &entities.NotFoundError{Resource: "plot loop", ID: id}
	}
	return loop, nil
}

// Resolve closes a plot loop, recording the chapter that pays it off.
// Terminal loops reject resolution until reopened.
func (s *PlotLoopService) Resolve(ctx context.Context, id, resolutionChapterID string, resolutionChapterOrder int) (*entities.PlotLoop, error) {
	loop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loop.Status.IsTerminal() {
		return nil, &entities.InvalidStateError{Action: "resolve", Current: loop.Status}
	}

	previous := loop.Status
	loop.Status = entities.LoopClosed
	loop.ResolutionChapterID = resolutionChapterID
	loop.ResolutionChapterOrder = resolutionChapterOrder
	loop.UpdatedAt = timeNow()

	if err := s.db.UpdatePlotLoop(ctx, loop); err != nil {
		return nil, err
	}

	s.publish(entities.ChangeEvent{
		Operation:           entities.OpStatusChange,
		ProjectID:           loop.ProjectID,
		PlotLoopID:          loop.ID,
		Title:               loop.Title,
		Status:              loop.Status,
		PreviousStatus:      previous,
		ResolutionChapterID: resolutionChapterID,
	})
	return loop, nil
}

// Abandon marks a plot loop as deliberately unresolved. A reason is
// required; terminal loops reject abandonment until reopened.
func (s *PlotLoopService) Abandon(ctx context.Context, id, reason string) (*entities.PlotLoop, error) {
	if reason == "" {
		return nil, &entities.ValidationError{Field: "reason", Reason: "cannot be empty"}
	}

	loop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loop.Status.IsTerminal() {
		return nil, &entities.InvalidStateError{Action: "abandon", Current: loop.Status}
	}

	previous := loop.Status
	loop.Status = entities.LoopAbandoned
	loop.AbandonReason = reason
	loop.UpdatedAt = timeNow()

	if err := s.db.UpdatePlotLoop(ctx, loop); err != nil {
		return nil, err
	}

	s.publish(entities.ChangeEvent{
		Operation:      entities.OpStatusChange,
		ProjectID:      loop.ProjectID,
		PlotLoopID:     loop.ID,
		Title:          loop.Title,
		Status:         loop.Status,
		PreviousStatus: previous,
	})
	return loop, nil
}

// Reopen returns a plot loop to the open state from any state, clearing the
// resolution and abandonment fields.
func (s *PlotLoopService) Reopen(ctx context.Context, id string) (*entities.PlotLoop, error) {
	loop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := loop.Status
	loop.Status = entities.LoopOpen
	loop.ResolutionChapterID = ""
	loop.ResolutionChapterOrder = 0
	loop.AbandonReason = ""
	loop.UpdatedAt = timeNow()

	if err := s.db.UpdatePlotLoop(ctx, loop); err != nil {
		return nil, err
	}

	s.publish(entities.ChangeEvent{
		Operation:      entities.OpStatusChange,
		ProjectID:      loop.ProjectID,
		PlotLoopID:     loop.ID,
		Title:          loop.Title,
		Status:         loop.Status,
		PreviousStatus: previous,
	})
	return loop, nil
}

// Delete soft-deletes a plot loop.
func (s *PlotLoopService) Delete(ctx context.Context, id string) error {
	loop, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.SoftDeletePlotLoop(ctx, id); err != nil {
		return err
	}

	s.publish(entities.ChangeEvent{
		Operation:  entities.OpDelete,
		ProjectID:  loop.ProjectID,
		PlotLoopID: loop.ID,
		Title:      loop.Title,
	})
	return nil
}

// Escalate marks every open loop introduced more than escalationThreshold
// chapters before currentOrder as urgent. Already-urgent loops are left
// alone, so the sweep is idempotent. Returns the loops escalated this call.
func (s *PlotLoopService) Escalate(ctx context.Context, projectID string, currentOrder int) ([]entities.PlotLoop, error) {
	open, err := s.db.FindPlotLoopsByStatus(ctx, projectID, entities.LoopOpen)
	if err != nil {
		return nil, err
	}

	var escalated []entities.PlotLoop
	for i := range open {
		loop := open[i]
		if currentOrder-loop.IntroChapterOrder <= escalationThreshold {
			continue
		}

		loop.Status = entities.LoopUrgent
		loop.UpdatedAt = timeNow()
		if err := s.db.UpdatePlotLoop(ctx, &loop); err != nil {
			return escalated, err
		}
		escalated = append(escalated, loop)

		s.publish(entities.ChangeEvent{
			Operation:      entities.OpStatusChange,
			ProjectID:      loop.ProjectID,
			PlotLoopID:     loop.ID,
			Title:          loop.Title,
			Status:         entities.LoopUrgent,
			PreviousStatus: entities.LoopOpen,
		})
	}
	return escalated, nil
}

// List returns all of a project's plot loops.
func (s *PlotLoopService) List(ctx context.Context, projectID string) ([]entities.PlotLoop, error) {
	return s.db.FindPlotLoopsByProject(ctx, projectID)
}

// ListActive returns the project's open and urgent loops, the set an author
// needs in front of them while drafting.
func (s *PlotLoopService) ListActive(ctx context.Context, projectID string) ([]entities.PlotLoop, error) {
	return s.db.FindPlotLoopsByStatus(ctx, projectID, entities.LoopOpen, entities.LoopUrgent)
}

// ListByStatus returns the project's loops in the given status.
func (s *PlotLoopService) ListByStatus(ctx context.Context, projectID string, status entities.LoopStatus) ([]entities.PlotLoop, error) {
	return s.db.FindPlotLoopsByStatus(ctx, projectID, status)
}
