package providers

import (
	"context"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
)

// DocumentExtractor turns a document image into analysis text and the
// medicine names mentioned in it.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, doc *entities.DocumentImage) (*entities.Extraction, error)
}

// Summarizer synthesizes structured summary fields from a patient's history.
type Summarizer interface {
	Summarize(ctx context.Context, history, patientID, userID string) (*entities.SummaryDraft, error)
}

// MedicineJudge answers a verification question about a medicine name using
// the given web evidence.
type MedicineJudge interface {
	JudgeMedicine(ctx context.Context, name, question, evidence string) (*entities.MedicineJudgement, error)
}
