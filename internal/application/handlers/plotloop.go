package handlers

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/services"
)

// PlotLoopHandler handles plot loop lifecycle operations.
type PlotLoopHandler struct {
	loops *services.PlotLoopService
}

// NewPlotLoopHandler creates a new plot loop handler.
func NewPlotLoopHandler(loops *services.PlotLoopService) *PlotLoopHandler {
	return &PlotLoopHandler{loops: loops}
}

// HandleCreate opens a new plot loop.
func (h *PlotLoopHandler) HandleCreate(ctx context.Context, projectID, title, description, introChapterID string, introChapterOrder int) (*entities.PlotLoop, error) {
	return h.loops.Create(ctx, projectID, title, description, introChapterID, introChapterOrder)
}

// HandleGet returns a plot loop by id.
func (h *PlotLoopHandler) HandleGet(ctx context.Context, id string) (*entities.PlotLoop, error) {
	return h.loops.Get(ctx, id)
}

// HandleResolve closes a plot loop against a resolution chapter.
func (h *PlotLoopHandler) HandleResolve(ctx context.Context, id, chapterID string, chapterOrder int) (*entities.PlotLoop, error) {
	return h.loops.Resolve(ctx, id, chapterID, chapterOrder)
}

// HandleAbandon marks a plot loop deliberately unresolved.
func (h *PlotLoopHandler) HandleAbandon(ctx context.Context, id, reason string) (*entities.PlotLoop, error) {
	return h.loops.Abandon(ctx, id, reason)
}

// HandleReopen returns a plot loop to the open state.
func (h *PlotLoopHandler) HandleReopen(ctx context.Context, id string) (*entities.PlotLoop, error) {
	return h.loops.Reopen(ctx, id)
}

// HandleDelete soft-deletes a plot loop.
func (h *PlotLoopHandler) HandleDelete(ctx context.Context, id string) error {
	return h.loops.Delete(ctx, id)
}

// EscalateResult contains the result of an escalation sweep.
type EscalateResult struct {
	Escalated []entities.PlotLoop `json:"escalated"`
	Count     int                 `json:"count"`
}

// HandleEscalate sweeps the project's open loops against the current chapter
// order and marks overdue ones urgent.
func (h *PlotLoopHandler) HandleEscalate(ctx context.Context, projectID string, currentOrder int) (*EscalateResult, error) {
	if currentOrder < 1 {
		return nil, &entities.ValidationError{Field: "current chapter order", Reason: "must be positive"}
	}

	escalated, err := h.loops.Escalate(ctx, projectID, currentOrder)
	if err != nil {
		return nil, err
	}
	return &EscalateResult{Escalated: escalated, Count: len(escalated)}, nil
}

// LoopListResult contains the result of listing plot loops.
type LoopListResult struct {
	Loops []entities.PlotLoop `json:"loops"`
	Total int                 `json:"total"`
}

// HandleList lists a project's plot loops. The filter may be empty (all),
// "active" (open and urgent), or a single status.
func (h *PlotLoopHandler) HandleList(ctx context.Context, projectID, filter string) (*LoopListResult, error) {
	var loops []entities.PlotLoop
	var err error

	switch filter {
	case "":
		loops, err = h.loops.List(ctx, projectID)
	case "active":
		loops, err = h.loops.ListActive(ctx, projectID)
	default:
		var status entities.LoopStatus
		status, err = entities.ParseLoopStatus(filter)
		if err != nil {
			return nil, err
		}
		loops, err = h.loops.ListByStatus(ctx, projectID, status)
	}
	if err != nil {
		return nil, err
	}

	return &LoopListResult{Loops: loops, Total: len(loops)}, nil
}
