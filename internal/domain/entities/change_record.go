package entities

import "time"

// ChangeRecord documents one field-level change within a snapshot,
// including the prose excerpt that justified it. Created atomically with
// its snapshot and never edited afterwards.
type ChangeRecord struct {
	ID           string    `json:"id"`
	SnapshotID   string    `json:"snapshot_id"`
	FieldPath    string    `json:"field_path"`
	OldValue     any       `json:"old_value,omitempty"`
	NewValue     any       `json:"new_value,omitempty"`
	ChangeReason string    `json:"change_reason,omitempty"`
	SourceText   string    `json:"source_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
