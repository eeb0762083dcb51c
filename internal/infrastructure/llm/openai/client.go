// Package openai provides an LLMClient implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/infrastructure/config"
)

const continuityPrompt = `You are a continuity editor for fiction. Compare the previous and current
state of the entity "%s" and identify contradictions that are not explained
by the changes themselves.

Previous state:
%s

Current state:
%s

For each contradiction found, return:
- field_path: The state field in conflict (dot notation for nested fields)
- description: What the contradiction is
- suggestion: How the author could fix it (optional)
- expected: The value implied by the previous state (optional)
- actual: The value in the current state (optional)
- severity: "info", "warning", or "error"

Return ONLY a valid JSON array, no other text. Return empty array [] if the
states are consistent.`

// Client implements the LLMClient interface using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// JudgeContinuity compares an entity's previous and current states and
// reports the contradictions the model finds.
func (c *Client) JudgeContinuity(ctx context.Context, entityName string, previous, current entities.StateMap) ([]ports.ContinuityIssue, error) {
	if len(previous) == 0 || len(current) == 0 {
		return nil, nil
	}

	previousJSON, err := json.MarshalIndent(previous, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling previous state: %w", err)
	}

	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling current state: %w", err)
	}

	prompt := fmt.Sprintf(continuityPrompt, entityName, string(previousJSON), string(currentJSON))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	content = cleanJSONResponse(content)

	var rawIssues []rawContinuityIssue
	if err := json.Unmarshal([]byte(content), &rawIssues); err != nil {
		return nil, fmt.Errorf("parsing continuity JSON: %w (response: %s)", err, content)
	}

	issues := make([]ports.ContinuityIssue, 0, len(rawIssues))
	for _, ri := range rawIssues {
		issues = append(issues, ports.ContinuityIssue{
			FieldPath:   ri.FieldPath,
			Description: ri.Description,
			Suggestion:  ri.Suggestion,
			Expected:    ri.Expected,
			Actual:      ri.Actual,
			Severity:    parseIssueSeverity(ri.Severity),
		})
	}

	return issues, nil
}

// rawContinuityIssue is the JSON structure for reported contradictions.
type rawContinuityIssue struct {
	FieldPath   string `json:"field_path"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Severity    string `json:"severity"`
}

// parseIssueSeverity maps a model-reported severity onto the known levels,
// defaulting to warning for anything unrecognized.
func parseIssueSeverity(s string) entities.Severity {
	severity, err := entities.ParseSeverity(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return entities.SeverityWarning
	}
	return severity
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
