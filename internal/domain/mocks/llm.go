package mocks

import (
	"context"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
)

// LLMClient is a mock implementation of ports.LLMClient.
type LLMClient struct {
	Issues []ports.ContinuityIssue
	Err    error

	// Calls records each judged entity name.
	Calls []string
}

// JudgeContinuity returns the configured issues or error.
func (m *LLMClient) JudgeContinuity(ctx context.Context, entityName string, previous, current entities.StateMap) ([]ports.ContinuityIssue, error) {
	m.Calls = append(m.Calls, entityName)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Issues, nil
}
