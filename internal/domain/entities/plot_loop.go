package entities

import "time"

// LoopStatus is the lifecycle state of a plot loop.
type LoopStatus string

const (
	LoopOpen      LoopStatus = "open"
	LoopUrgent    LoopStatus = "urgent"
	LoopClosed    LoopStatus = "closed"
	LoopAbandoned LoopStatus = "abandoned"
)

// ParseLoopStatus validates and converts a string to a LoopStatus.
func ParseLoopStatus(s string) (LoopStatus, error) {
	switch LoopStatus(s) {
	case LoopOpen, LoopUrgent, LoopClosed, LoopAbandoned:
		return LoopStatus(s), nil
	default:
		return "", &ValidationError{Field: "status", Reason: "must be one of: open, urgent, closed, abandoned"}
	}
}

// IsActive reports whether the loop still needs an eventual resolution.
func (s LoopStatus) IsActive() bool {
	return s == LoopOpen || s == LoopUrgent
}

// IsTerminal reports whether the loop is in a terminal state.
// Terminal loops reject resolve/abandon until explicitly reopened.
func (s LoopStatus) IsTerminal() bool {
	return s == LoopClosed || s == LoopAbandoned
}

// PlotLoop is an open narrative thread: a setup that must eventually be
// paid off. Soft-deleted only; warnings may still reference it.
type PlotLoop struct {
	ID                     string     `json:"id"`
	ProjectID              string     `json:"project_id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description,omitempty"`
	Status                 LoopStatus `json:"status"`
	IntroChapterID         string     `json:"intro_chapter_id,omitempty"`
	IntroChapterOrder      int        `json:"intro_chapter_order,omitempty"`
	ResolutionChapterID    string     `json:"resolution_chapter_id,omitempty"`
	ResolutionChapterOrder int        `json:"resolution_chapter_order,omitempty"`
	AbandonReason          string     `json:"abandon_reason,omitempty"`
	Deleted                bool       `json:"deleted,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}
