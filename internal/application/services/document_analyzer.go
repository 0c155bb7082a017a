package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/observability"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// DocumentAnalyzer produces the analysis of one record, reusing the cached
// analysis when one exists.
type DocumentAnalyzer struct {
	layout    *CacheLayout
	loader    *DocumentLoader
	extractor providers.DocumentExtractor
	verifier  *MedicineVerifier
	now       func() time.Time
}

// NewDocumentAnalyzer creates a new document analyzer. verifier may be nil
// to skip medicine verification.
func NewDocumentAnalyzer(layout *CacheLayout, loader *DocumentLoader, extractor providers.DocumentExtractor, verifier *MedicineVerifier) *DocumentAnalyzer {
	if loader == nil {
		loader = NewDocumentLoader()
	}
	return &DocumentAnalyzer{
		layout:    layout,
		loader:    loader,
		extractor: extractor,
		verifier:  verifier,
		now:       time.Now,
	}
}

// Analyze returns the record's analysis. cached reports whether it came from
// the local cache, in which case the extractor was not called.
func (a *DocumentAnalyzer) Analyze(ctx context.Context, patient *entities.Patient, record *entities.MedicalRecord, localPath string) (*entities.DocumentAnalysis, bool, error) {
	cachePath := a.layout.AnalysisPath(patient.UserID, patient.ID, record.ID)
	if analysis, ok := readCachedAnalysis(cachePath); ok {
		return analysis, true, nil
	}

	ctx, span := observability.StartSpan(ctx, "document.analyze",
		attribute.String("patient_id", patient.ID),
		attribute.String("record_id", record.ID),
	)
	defer span.End()

	doc, err := a.loader.Load(localPath)
	if err != nil {
		observability.RecordError(span, err)
		return nil, false, err
	}

	extraction, err := a.extractor.ExtractDocument(ctx, doc)
	if err != nil {
		observability.RecordError(span, err)
		return nil, false, apperrors.NewExtractionError("failed to extract "+doc.FileName, err)
	}
	if extraction == nil || strings.TrimSpace(extraction.DetailedAnalysis) == "" {
		return nil, false, apperrors.NewExtractionError("extraction returned no analysis for "+doc.FileName, nil)
	}

	medicines := extraction.ExtractedMedicines
	if medicines == nil {
		medicines = []string{}
	}
	verifications := []entities.MedicineVerification{}
	if a.verifier != nil && len(medicines) > 0 {
		verifications = a.verifier.VerifyAll(ctx, medicines)
	}
	// A cancelled run leaves verifications incomplete; caching them would
	// stop later runs from retrying.
	if err := ctx.Err(); err != nil {
		observability.RecordError(span, err)
		return nil, false, err
	}

	analysis := &entities.DocumentAnalysis{
		PatientID:             patient.ID,
		RecordID:              record.ID,
		SourceFile:            filepath.Base(localPath),
		Analysis:              extraction.DetailedAnalysis,
		ExtractedMedicines:    medicines,
		MedicineVerifications: verifications,
		CreatedAt:             a.now().UTC(),
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to encode analysis", err)
	}
	if err := writeFileAtomic(cachePath, data); err != nil {
		return nil, false, apperrors.NewInternalError("failed to cache analysis", err)
	}

	log.Info().
		Str("patient_id", patient.ID).
		Str("record_id", record.ID).
		Int("medicines", len(medicines)).
		Msg("Analyzed document")
	return analysis, false, nil
}

// readCachedAnalysis loads a cached analysis. Unreadable or empty cache
// files are ignored so the record is analyzed again.
func readCachedAnalysis(path string) (*entities.DocumentAnalysis, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var analysis entities.DocumentAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil || strings.TrimSpace(analysis.Analysis) == "" {
		log.Warn().Err(err).Str("path", path).Msg("Ignoring unusable cached analysis")
		return nil, false
	}
	return &analysis, true
}
