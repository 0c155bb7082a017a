package repositories

import (
	"context"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
)

// PatientRepository reads patients from the application database.
type PatientRepository interface {
	// List returns every patient in a stable order
	List(ctx context.Context) ([]*entities.Patient, error)

	// GetByID retrieves a patient by ID
	GetByID(ctx context.Context, id string) (*entities.Patient, error)
}
