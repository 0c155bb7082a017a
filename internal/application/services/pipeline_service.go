package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	"github.com/ayurlekha/processing-engine/internal/domain/repositories"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/observability"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const defaultLockTTL = 30 * time.Minute

// PipelineOptions carries the optional collaborators of a run.
type PipelineOptions struct {
	Lock          providers.PatientLock
	LockTTL       time.Duration
	Events        providers.EventBus
	EventsChannel string
	Metrics       *observability.Metrics
	// Now is the clock for summary generation times. Defaults to time.Now.
	Now func() time.Time
}

// PipelineService drives fetch, analysis, aggregation, synthesis and
// publication for each patient in turn.
type PipelineService struct {
	patients    repositories.PatientRepository
	records     repositories.MedicalRecordRepository
	fetcher     *DocumentFetcher
	analyzer    *DocumentAnalyzer
	aggregator  HistoryAggregator
	synthesizer *SummarySynthesizer
	publisher   *SummaryPublisher
	opts        PipelineOptions
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(
	patients repositories.PatientRepository,
	records repositories.MedicalRecordRepository,
	fetcher *DocumentFetcher,
	analyzer *DocumentAnalyzer,
	aggregator HistoryAggregator,
	synthesizer *SummarySynthesizer,
	publisher *SummaryPublisher,
	opts PipelineOptions,
) *PipelineService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.EventsChannel == "" {
		opts.EventsChannel = providers.EventChannelSummaries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PipelineService{
		patients:    patients,
		records:     records,
		fetcher:     fetcher,
		analyzer:    analyzer,
		aggregator:  aggregator,
		synthesizer: synthesizer,
		publisher:   publisher,
		opts:        opts,
	}
}

// RunAll processes every patient sequentially. One patient's failure never
// stops the run; only an unreadable patient list or a cancelled context do.
func (s *PipelineService) RunAll(ctx context.Context) (*entities.RunSummary, error) {
	summary := &entities.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	patients, err := s.patients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	log.Info().Str("run_id", summary.RunID).Int("patients", len(patients)).Msg("Starting summary run")

	for _, patient := range patients {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = time.Now().UTC()
			return summary, err
		}
		summary.Add(s.processPatient(ctx, summary.RunID, patient))
	}

	summary.FinishedAt = time.Now().UTC()
	return summary, nil
}

// RunPatient processes a single patient.
func (s *PipelineService) RunPatient(ctx context.Context, patientID string) (*entities.PatientOutcome, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.processPatient(ctx, uuid.New().String(), patient), nil
}

func (s *PipelineService) processPatient(ctx context.Context, runID string, patient *entities.Patient) *entities.PatientOutcome {
	ctx, span := observability.StartSpan(ctx, "pipeline.patient", attribute.String("patient_id", patient.ID))
	defer span.End()

	logger := log.With().Str("run_id", runID).Str("patient_id", patient.ID).Str("user_id", patient.UserID).Logger()
	outcome := &entities.PatientOutcome{PatientID: patient.ID, UserID: patient.UserID}

	defer func() {
		s.opts.Metrics.RecordPatientOutcome(ctx, string(outcome.State))
		span.SetAttributes(attribute.String("state", string(outcome.State)))
		level := zerolog.InfoLevel
		if outcome.State == entities.PatientStateFailed {
			observability.RecordError(span, outcome.Err)
			level = zerolog.ErrorLevel
		}
		logger.WithLevel(level).Err(outcome.Err).
			Str("state", string(outcome.State)).
			Int("records_analyzed", outcome.RecordsAnalyzed).
			Int("records_failed", outcome.RecordsFailed).
			Msg("Patient finished")
	}()

	if s.opts.Lock != nil {
		release, ok, err := s.opts.Lock.Acquire(ctx, patient.ID, s.opts.LockTTL)
		if err != nil {
			return fail(outcome, fmt.Errorf("failed to acquire patient lock: %w", err))
		}
		if !ok {
			outcome.State = entities.PatientStateSkippedLocked
			return outcome
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				logger.Warn().Err(err).Msg("Failed to release patient lock")
			}
		}()
	}

	records, err := s.records.ListUnprocessedByPatient(ctx, patient.ID)
	if err != nil {
		return fail(outcome, fmt.Errorf("failed to list records: %w", err))
	}
	if len(records) == 0 {
		outcome.State = entities.PatientStateSkippedNoRecords
		return outcome
	}

	analyses, recordIDs := s.analyzeRecords(ctx, logger, patient, records, outcome)
	if err := ctx.Err(); err != nil {
		return fail(outcome, err)
	}
	if len(analyses) == 0 {
		logger.Warn().Int("records", len(records)).Msg("No analyses produced, skipping summary")
		outcome.State = entities.PatientStateSkippedNoAnalyses
		return outcome
	}

	start := time.Now()
	history, err := s.aggregator.Aggregate(ctx, patient, analyses)
	s.opts.Metrics.RecordStage(ctx, "aggregate", time.Since(start))
	if err != nil {
		return fail(outcome, fmt.Errorf("failed to aggregate history: %w", err))
	}

	generatedAt := s.opts.Now().UTC()
	start = time.Now()
	summary, err := s.synthesizer.Synthesize(ctx, history, patient.ID, patient.UserID, generatedAt)
	s.opts.Metrics.RecordStage(ctx, "synthesize", time.Since(start))
	if err != nil {
		return fail(outcome, err)
	}

	start = time.Now()
	result, err := s.publisher.Publish(ctx, patient, summary, recordIDs, generatedAt)
	s.opts.Metrics.RecordStage(ctx, "publish", time.Since(start))
	if result != nil {
		outcome.SummaryFile = result.LocalPath
		outcome.RemotePath = result.RemotePath
	}
	if err != nil {
		return fail(outcome, err)
	}

	outcome.State = entities.PatientStatePublished
	s.announce(ctx, logger, runID, patient, result, recordIDs)
	return outcome
}

// analyzeRecords fetches and analyzes each record. Per-record failures are
// logged and counted; the record stays unprocessed for the next run.
func (s *PipelineService) analyzeRecords(
	ctx context.Context,
	logger zerolog.Logger,
	patient *entities.Patient,
	records []*entities.MedicalRecord,
	outcome *entities.PatientOutcome,
) ([]*entities.DocumentAnalysis, []string) {
	analyses := make([]*entities.DocumentAnalysis, 0, len(records))
	recordIDs := make([]string, 0, len(records))

	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		recLogger := logger.With().Str("record_id", record.ID).Logger()

		if strings.TrimSpace(record.FileURL) == "" {
			recLogger.Warn().Str("operation", "fetch").Msg("Record has no file reference, skipping")
			s.recordFailed(ctx, outcome)
			continue
		}

		start := time.Now()
		localPath, err := s.fetcher.Fetch(ctx, patient, record)
		s.opts.Metrics.RecordStage(ctx, "fetch", time.Since(start))
		if err != nil {
			recLogger.Error().Err(err).Str("operation", "fetch").Str("error_type", string(apperrors.TypeOf(err))).Msg("Skipping record")
			s.recordFailed(ctx, outcome)
			continue
		}

		start = time.Now()
		analysis, cached, err := s.analyzer.Analyze(ctx, patient, record, localPath)
		s.opts.Metrics.RecordStage(ctx, "analyze", time.Since(start))
		if err != nil {
			recLogger.Error().Err(err).Str("operation", "analyze").Str("error_type", string(apperrors.TypeOf(err))).Msg("Skipping record")
			s.recordFailed(ctx, outcome)
			continue
		}

		if cached {
			s.opts.Metrics.RecordRecord(ctx, "cached")
			recLogger.Debug().Msg("Using cached analysis")
		} else {
			s.opts.Metrics.RecordRecord(ctx, "analyzed")
		}

		if err := s.aggregator.Record(ctx, patient, analysis); err != nil {
			recLogger.Warn().Err(err).Str("operation", "memory_record").Msg("Failed to store analysis in memory")
		}

		analyses = append(analyses, analysis)
		recordIDs = append(recordIDs, record.ID)
		outcome.RecordsAnalyzed++
	}
	return analyses, recordIDs
}

func (s *PipelineService) recordFailed(ctx context.Context, outcome *entities.PatientOutcome) {
	outcome.RecordsFailed++
	s.opts.Metrics.RecordRecord(ctx, "failed")
}

// announce publishes a SummaryEvent. Delivery is best effort.
func (s *PipelineService) announce(ctx context.Context, logger zerolog.Logger, runID string, patient *entities.Patient, result *PublishResult, recordIDs []string) {
	if s.opts.Events == nil || result == nil {
		return
	}
	event := &entities.SummaryEvent{
		ID:          uuid.New().String(),
		RunID:       runID,
		PatientID:   patient.ID,
		UserID:      patient.UserID,
		Bucket:      result.Bucket,
		RemotePath:  result.RemotePath,
		Format:      s.publisher.Format(),
		RecordIDs:   recordIDs,
		GeneratedAt: result.GeneratedAt,
	}
	if err := s.opts.Events.Publish(ctx, s.opts.EventsChannel, event); err != nil {
		logger.Warn().Err(err).Str("operation", "announce").Msg("Failed to publish summary event")
	}
}

func fail(outcome *entities.PatientOutcome, err error) *entities.PatientOutcome {
	outcome.State = entities.PatientStateFailed
	outcome.Err = err
	return outcome
}
