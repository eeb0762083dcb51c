package entities

import "fmt"

// NotFoundError reports a missing timeline, snapshot, keyframe chain, or
// other entity. Surfaced to callers as a 404-equivalent.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// InvalidOrderError reports an out-of-order snapshot write. Snapshots must
// be written with strictly increasing chapter order; out-of-order writes
// are rejected, not merged.
type InvalidOrderError struct {
	ChapterOrder int
	MaxOrder     int
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("chapter order %d is not greater than the timeline's current maximum %d", e.ChapterOrder, e.MaxOrder)
}

// InvalidStateError reports an illegal lifecycle transition, e.g. resolving
// an already-closed plot loop. Surfaced as a 409-equivalent.
type InvalidStateError struct {
	Action  string
	Current LoopStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a plot loop in status %q", e.Action, e.Current)
}

// ValidationError reports an empty or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
