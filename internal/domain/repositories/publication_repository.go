package repositories

import (
	"context"
	"time"
)

// PublicationRepository records that a summary was published.
type PublicationRepository interface {
	// RecordPublication stamps the patient's summary time and marks the
	// given records processed. Both updates commit together or not at all.
	RecordPublication(ctx context.Context, patientID string, recordIDs []string, generatedAt time.Time) error
}
