package entities

import "time"

// WarningType categorizes a detected inconsistency.
type WarningType string

const (
	WarningCharacterInconsistency WarningType = "character_inconsistency"
	WarningTimelineConflict       WarningType = "timeline_conflict"
	WarningPlotLoopUnclosed       WarningType = "plot_loop_unclosed"
	WarningNameDuplicate          WarningType = "name_duplicate"
	WarningBrokenReference        WarningType = "broken_reference"
	WarningWikiInconsistency      WarningType = "wiki_inconsistency"
)

// Severity indicates how serious a warning is. It is informational only:
// the ledger applies no behavior based on it.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity validates and converts a string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityError:
		return Severity(s), nil
	default:
		return "", &ValidationError{Field: "severity", Reason: "must be one of: info, warning, error"}
	}
}

// ConsistencyWarning is a detected or reported continuity issue.
// Mutated only through resolve/dismiss; hard-deleted only on teardown.
type ConsistencyWarning struct {
	ID               string      `json:"id"`
	ProjectID        string      `json:"project_id"`
	EntityID         string      `json:"entity_id,omitempty"`
	EntityType       EntityType  `json:"entity_type,omitempty"`
	WarningType      WarningType `json:"warning_type"`
	Severity         Severity    `json:"severity"`
	Description      string      `json:"description"`
	Suggestion       string      `json:"suggestion,omitempty"`
	FieldPath        string      `json:"field_path,omitempty"`
	ExpectedValue    string      `json:"expected_value,omitempty"`
	ActualValue      string      `json:"actual_value,omitempty"`
	RelatedEntityIDs []string    `json:"related_entity_ids,omitempty"`
	Resolved         bool        `json:"resolved"`
	Dismissed        bool        `json:"dismissed"`
	ResolutionMethod string      `json:"resolution_method,omitempty"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// IsOpen reports whether the warning still needs attention.
func (w *ConsistencyWarning) IsOpen() bool {
	return !w.Resolved && !w.Dismissed
}
