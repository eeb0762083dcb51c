package handlers

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
)

// AuditHandler reads the audit log, primarily to surface failed fabric
// dispatches for manual replay.
type AuditHandler struct {
	db ports.RelationalDB
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(db ports.RelationalDB) *AuditHandler {
	return &AuditHandler{db: db}
}

// HandleByAction lists recent audit entries for an action type.
func (h *AuditHandler) HandleByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	if action == "" {
		return nil, &entities.ValidationError{Field: "action", Reason: "cannot be empty"}
	}
	if limit < 1 {
		limit = 50
	}
	return h.db.FindAuditLogByAction(ctx, action, limit)
}

// HandleForEntity lists the audit trail of one entity.
func (h *AuditHandler) HandleForEntity(ctx context.Context, entityID string) ([]entities.AuditEntry, error) {
	if entityID == "" {
		return nil, &entities.ValidationError{Field: "entity id", Reason: "cannot be empty"}
	}
	return h.db.FindAuditLog(ctx, entityID)
}
