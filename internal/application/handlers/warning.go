package handlers

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/services"
)

// WarningHandler handles warning ledger operations.
type WarningHandler struct {
	warnings *services.WarningService
}

// NewWarningHandler creates a new warning handler.
func NewWarningHandler(warnings *services.WarningService) *WarningHandler {
	return &WarningHandler{warnings: warnings}
}

// WarningListResult contains the result of listing warnings.
type WarningListResult struct {
	Warnings []entities.ConsistencyWarning `json:"warnings"`
	Total    int                           `json:"total"`
}

// HandleList lists a project's open warnings, optionally filtered by
// severity or warning type. Filters are mutually exclusive; severity wins.
func (h *WarningHandler) HandleList(ctx context.Context, projectID, severity, warningType string) (*WarningListResult, error) {
	var warnings []entities.ConsistencyWarning
	var err error

	switch {
	case severity != "":
		var parsed entities.Severity
		parsed, err = entities.ParseSeverity(severity)
		if err != nil {
			return nil, err
		}
		warnings, err = h.warnings.ListOpenBySeverity(ctx, projectID, parsed)
	case warningType != "":
		warnings, err = h.warnings.ListOpenByType(ctx, projectID, entities.WarningType(warningType))
	default:
		warnings, err = h.warnings.ListOpen(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}

	return &WarningListResult{Warnings: warnings, Total: len(warnings)}, nil
}

// HandleListForEntity lists every warning ever filed for an entity.
func (h *WarningHandler) HandleListForEntity(ctx context.Context, entityID string) (*WarningListResult, error) {
	warnings, err := h.warnings.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return &WarningListResult{Warnings: warnings, Total: len(warnings)}, nil
}

// HandleResolve resolves one warning. Returns false when it was already
// terminal.
func (h *WarningHandler) HandleResolve(ctx context.Context, id, method string) (bool, error) {
	return h.warnings.Resolve(ctx, id, method)
}

// HandleDismiss dismisses one warning.
func (h *WarningHandler) HandleDismiss(ctx context.Context, id string) (bool, error) {
	return h.warnings.Dismiss(ctx, id)
}

// BulkResult contains the changed count of a bulk operation.
type BulkResult struct {
	Requested int `json:"requested"`
	Changed   int `json:"changed"`
}

// HandleBulkResolve resolves a batch of warnings, counting only the ones
// actually changed.
func (h *WarningHandler) HandleBulkResolve(ctx context.Context, ids []string, method string) (*BulkResult, error) {
	changed, err := h.warnings.BulkResolve(ctx, ids, method)
	if err != nil {
		return nil, err
	}
	return &BulkResult{Requested: len(ids), Changed: changed}, nil
}

// HandleBulkDismiss dismisses a batch of warnings.
func (h *WarningHandler) HandleBulkDismiss(ctx context.Context, ids []string) (*BulkResult, error) {
	changed, err := h.warnings.BulkDismiss(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &BulkResult{Requested: len(ids), Changed: changed}, nil
}

// HandleResolveForEntity resolves every open warning for an entity.
func (h *WarningHandler) HandleResolveForEntity(ctx context.Context, entityID, method string) (int, error) {
	return h.warnings.ResolveAllForEntity(ctx, entityID, method)
}
