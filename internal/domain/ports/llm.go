package ports

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

// LLMClient defines the interface for LLM operations.
type LLMClient interface {
	// JudgeContinuity compares an entity's previous and current states and
	// reports the contradictions it finds.
	JudgeContinuity(ctx context.Context, entityName string, previous, current entities.StateMap) ([]ContinuityIssue, error)
}

// ContinuityIssue is one contradiction reported by the LLM judgment.
type ContinuityIssue struct {
	FieldPath   string            `json:"field_path"`
	Description string            `json:"description"`
	Suggestion  string            `json:"suggestion,omitempty"`
	Expected    string            `json:"expected,omitempty"`
	Actual      string            `json:"actual,omitempty"`
	Severity    entities.Severity `json:"severity"`
}
