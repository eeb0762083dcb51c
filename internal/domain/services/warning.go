package services

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
)

// WarningService manages the consistency warning ledger.
type WarningService struct {
	db ports.RelationalDB
}

// NewWarningService creates a new warning service.
func NewWarningService(db ports.RelationalDB) *WarningService {
	return &WarningService{db: db}
}

// Create files a new warning. The id and creation time are assigned here.
func (s *WarningService) Create(ctx context.Context, warning *entities.ConsistencyWarning) (*entities.ConsistencyWarning, error) {
	if warning.ProjectID == "" {
		return nil, &entities.ValidationError{Field: "project id", Reason: "cannot be empty"}
	}
	if warning.Description == "" {
		return nil, &entities.ValidationError{Field: "description", Reason: "cannot be empty"}
	}
	if warning.WarningType == "" {
		return nil, &entities.ValidationError{Field: "warning type", Reason: "cannot be empty"}
	}
	if _, err := entities.ParseSeverity(string(warning.Severity)); err != nil {
		return nil, err
	}

	warning.ID = generateUUID()
	warning.Resolved = false
	warning.Dismissed = false
	warning.ResolvedAt = nil
	warning.CreatedAt = timeNow()

	if err := s.db.SaveWarning(ctx, warning); err != nil {
		return nil, err
	}
	return warning, nil
}

// Get returns a warning by id.
func (s *WarningService) Get(ctx context.Context, id string) (*entities.ConsistencyWarning, error) {
	warning, err := s.db.FindWarningByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if warning == nil {
		return nil, &entities.NotFoundError{Resource: "warning", ID: id}
	}
	return warning, nil
}

// Resolve marks a warning resolved with the given method. Resolving an
// already-resolved warning is a no-op; the bool reports whether this call
// changed it.
func (s *WarningService) Resolve(ctx context.Context, id, resolutionMethod string) (bool, error) {
	if resolutionMethod == "" {
		return false, &entities.ValidationError{Field: "resolution method", Reason: "cannot be empty"}
	}

	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return s.db.MarkWarningResolved(ctx, id, resolutionMethod)
}

// Dismiss marks a warning dismissed. Dismissing twice is a no-op; the bool
// reports whether this call changed it.
func (s *WarningService) Dismiss(ctx context.Context, id string) (bool, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return s.db.MarkWarningDismissed(ctx, id)
}

// BulkResolve resolves the given warnings and returns how many actually
// changed. Missing and already-resolved ids are skipped, not errors.
func (s *WarningService) BulkResolve(ctx context.Context, ids []string, resolutionMethod string) (int, error) {
	if resolutionMethod == "" {
		return 0, &entities.ValidationError{Field: "resolution method", Reason: "cannot be empty"}
	}

	count := 0
	for _, id := range ids {
		changed, err := s.db.MarkWarningResolved(ctx, id, resolutionMethod)
		if err != nil {
			return count, err
		}
		if changed {
			count++
		}
	}
	return count, nil
}

// BulkDismiss dismisses the given warnings and returns how many actually
// changed. Missing and already-dismissed ids are skipped, not errors.
func (s *WarningService) BulkDismiss(ctx context.Context, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		changed, err := s.db.MarkWarningDismissed(ctx, id)
		if err != nil {
			return count, err
		}
		if changed {
			count++
		}
	}
	return count, nil
}

// ResolveAllForEntity resolves every open warning for an entity, returning
// the number changed. Used when an entity is re-verified after an edit.
func (s *WarningService) ResolveAllForEntity(ctx context.Context, entityID, resolutionMethod string) (int, error) {
	if resolutionMethod == "" {
		return 0, &entities.ValidationError{Field: "resolution method", Reason: "cannot be empty"}
	}
	return s.db.ResolveWarningsForEntity(ctx, entityID, resolutionMethod)
}

// DeleteAllForEntity hard-deletes every warning for an entity. Used on
// entity teardown only.
func (s *WarningService) DeleteAllForEntity(ctx context.Context, entityID string) error {
	return s.db.DeleteWarningsForEntity(ctx, entityID)
}

// DeleteAllForProject hard-deletes every warning in a project. Used on
// project teardown only.
func (s *WarningService) DeleteAllForProject(ctx context.Context, projectID string) error {
	return s.db.DeleteWarningsForProject(ctx, projectID)
}

// ExistsOpen reports whether an open warning of the given type already
// exists for the entity. Checkers use this to avoid filing duplicates.
func (s *WarningService) ExistsOpen(ctx context.Context, projectID, entityID string, warningType entities.WarningType) (bool, error) {
	return s.db.ExistsOpenWarning(ctx, projectID, entityID, warningType)
}

// ListOpen lists a project's open warnings, newest first.
func (s *WarningService) ListOpen(ctx context.Context, projectID string) ([]entities.ConsistencyWarning, error) {
	return s.db.FindOpenWarnings(ctx, projectID)
}

// ListOpenBySeverity lists a project's open warnings of a severity.
func (s *WarningService) ListOpenBySeverity(ctx context.Context, projectID string, severity entities.Severity) ([]entities.ConsistencyWarning, error) {
	return s.db.FindOpenWarningsBySeverity(ctx, projectID, severity)
}

// ListOpenByType lists a project's open warnings of a type.
func (s *WarningService) ListOpenByType(ctx context.Context, projectID string, warningType entities.WarningType) ([]entities.ConsistencyWarning, error) {
	return s.db.FindOpenWarningsByType(ctx, projectID, warningType)
}

// ListByEntity lists all warnings for an entity regardless of state.
func (s *WarningService) ListByEntity(ctx context.Context, entityID string) ([]entities.ConsistencyWarning, error) {
	return s.db.FindWarningsByEntity(ctx, entityID)
}
