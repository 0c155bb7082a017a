package services

import (
	"context"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
)

// SummarySynthesizer turns a patient history into a fully populated summary
type SummarySynthesizer struct {
	summarizer providers.Summarizer
}

// NewSummarySynthesizer creates a new summary synthesizer
func NewSummarySynthesizer(summarizer providers.Summarizer) *SummarySynthesizer {
	return &SummarySynthesizer{
		summarizer: summarizer,
	}
}

// Synthesize asks the summarizer for summary fields and fills every field
// it left out with its default. Footer and meta dates come from generatedAt.
func (s *SummarySynthesizer) Synthesize(ctx context.Context, history, patientID, userID string, generatedAt time.Time) (*entities.PatientSummary, error) {
	draft, err := s.summarizer.Summarize(ctx, history, patientID, userID)
	if err != nil {
		return nil, apperrors.NewSynthesisError("failed to synthesize summary for patient "+patientID, err)
	}
	return entities.ApplySummaryDefaults(draft, patientID, userID, generatedAt), nil
}
