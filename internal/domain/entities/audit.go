package entities

import "time"

// AuditEntry records one action in the audit log, including failed fabric
// dispatches kept for manual replay.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	EntityID  string         `json:"entity_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
