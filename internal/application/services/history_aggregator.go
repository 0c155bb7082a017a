package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	"github.com/ayurlekha/processing-engine/pkg/config"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMemoryQuery = "summarize patient %s"
	DefaultMemoryTopK  = 10
)

// HistoryAggregator combines a patient's document analyses into the single
// history text handed to the summarizer.
type HistoryAggregator interface {
	// Record is called once per fresh or cached analysis
	Record(ctx context.Context, patient *entities.Patient, analysis *entities.DocumentAnalysis) error

	// Aggregate builds the history from the analyses of this run
	Aggregate(ctx context.Context, patient *entities.Patient, analyses []*entities.DocumentAnalysis) (string, error)
}

// NewHistoryAggregator returns the aggregator for strategy.
func NewHistoryAggregator(strategy string, store providers.MemoryStore, query string, topK int) (HistoryAggregator, error) {
	switch strategy {
	case "", config.AggregationConcat:
		return &ConcatAggregator{}, nil
	case config.AggregationMemory:
		if store == nil {
			return nil, fmt.Errorf("memory aggregation requires a memory store")
		}
		return NewMemoryAggregator(store, query, topK), nil
	default:
		return nil, fmt.Errorf("unknown aggregation strategy %q", strategy)
	}
}

// ConcatAggregator joins analyses in record order, each under a header
// naming its source file.
type ConcatAggregator struct{}

func (a *ConcatAggregator) Record(context.Context, *entities.Patient, *entities.DocumentAnalysis) error {
	return nil
}

func (a *ConcatAggregator) Aggregate(_ context.Context, _ *entities.Patient, analyses []*entities.DocumentAnalysis) (string, error) {
	var b strings.Builder
	for _, analysis := range analyses {
		writeSection(&b, analysis.SourceFile, analysis.Analysis)
	}
	return b.String(), nil
}

func writeSection(b *strings.Builder, source, text string) {
	fmt.Fprintf(b, "\n--- Analysis from %s ---\n%s\n", source, text)
}

// MemoryAggregator indexes every analysis in the memory store and builds
// the history from what the store retrieves for the patient.
type MemoryAggregator struct {
	store    providers.MemoryStore
	query    string
	topK     int
	fallback ConcatAggregator
}

// NewMemoryAggregator creates a memory-backed aggregator. query may contain
// one %s for the patient ID.
func NewMemoryAggregator(store providers.MemoryStore, query string, topK int) *MemoryAggregator {
	if strings.TrimSpace(query) == "" {
		query = DefaultMemoryQuery
	}
	if topK <= 0 {
		topK = DefaultMemoryTopK
	}
	return &MemoryAggregator{store: store, query: query, topK: topK}
}

// Record upserts the analysis keyed by record ID, so reruns replace rather
// than duplicate.
func (a *MemoryAggregator) Record(ctx context.Context, patient *entities.Patient, analysis *entities.DocumentAnalysis) error {
	return a.store.Add(ctx, &entities.MemoryEntry{
		ID:         analysis.RecordID,
		Memory:     analysis.Analysis,
		PatientID:  patient.ID,
		UserID:     patient.UserID,
		RecordID:   analysis.RecordID,
		SourceFile: analysis.SourceFile,
		CreatedAt:  analysis.CreatedAt,
	})
}

// Aggregate joins the retrieved memories in ranked order. A failing store
// falls back to concatenating analyses.
func (a *MemoryAggregator) Aggregate(ctx context.Context, patient *entities.Patient, analyses []*entities.DocumentAnalysis) (string, error) {
	logger := log.With().Str("patient_id", patient.ID).Str("operation", "aggregate").Logger()

	entries, err := a.store.Search(ctx, patient.ID, a.queryFor(patient.ID), a.topK)
	if err == nil && len(entries) == 0 {
		logger.Debug().Msg("No memories matched the summary query, listing all patient memories")
		entries, err = a.store.Search(ctx, patient.ID, "*", a.topK)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Memory search failed, falling back to concatenation")
		return a.fallback.Aggregate(ctx, patient, analyses)
	}
	if len(entries) == 0 {
		logger.Warn().Msg("Memory store returned nothing, falling back to concatenation")
		return a.fallback.Aggregate(ctx, patient, analyses)
	}

	var b strings.Builder
	for _, entry := range entries {
		source := entry.SourceFile
		if source == "" {
			source = entry.RecordID
		}
		writeSection(&b, source, entry.Memory)
	}
	logger.Info().Int("memories", len(entries)).Msg("Built history from memory store")
	return b.String(), nil
}

func (a *MemoryAggregator) queryFor(patientID string) string {
	if strings.Contains(a.query, "%s") {
		return fmt.Sprintf(a.query, patientID)
	}
	return a.query
}
