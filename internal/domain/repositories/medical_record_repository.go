package repositories

import (
	"context"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
)

// MedicalRecordRepository reads the documents attached to a patient.
type MedicalRecordRepository interface {
	// ListUnprocessedByPatient returns records not yet covered by a
	// published summary, oldest first.
	ListUnprocessedByPatient(ctx context.Context, patientID string) ([]*entities.MedicalRecord, error)
}
