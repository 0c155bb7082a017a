package providers

import (
	"context"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
)

// MemoryStore is the semantic memory layer used by memory aggregation.
type MemoryStore interface {
	// Add stores an entry scoped to entry.PatientID. Adding an entry with an
	// existing ID replaces it.
	Add(ctx context.Context, entry *entities.MemoryEntry) error

	// Search returns at most limit entries for the patient, best match first
	Search(ctx context.Context, patientID, query string, limit int) ([]*entities.MemoryEntry, error)
}
