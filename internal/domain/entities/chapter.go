package entities

import "time"

// Chapter is a registry entry for a chapter of the work. The full chapter
// text lives outside this system; only the id and monotonic position are
// needed for timeline ordering and referential-integrity checks.
type Chapter struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	ChapterOrder int       `json:"chapter_order"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
