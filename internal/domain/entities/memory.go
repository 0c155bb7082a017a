package entities

import "time"

// MemoryEntry is one analysis stored in the semantic memory layer.
type MemoryEntry struct {
	ID         string    `json:"id"`
	Memory     string    `json:"memory"`
	PatientID  string    `json:"patient_id"`
	UserID     string    `json:"user_id"`
	RecordID   string    `json:"record_id"`
	SourceFile string    `json:"source_file"`
	CreatedAt  time.Time `json:"created_at"`
	Score      float64   `json:"score,omitempty"`
}
