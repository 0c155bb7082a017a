package services

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	"github.com/ayurlekha/processing-engine/internal/domain/repositories"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PublishResult describes where a summary ended up.
type PublishResult struct {
	FileName    string
	LocalPath   string
	Bucket      string
	RemotePath  string
	GeneratedAt time.Time
}

// SummaryPublisher writes a summary locally, uploads it and records the
// publication in the database.
type SummaryPublisher struct {
	storage      providers.ObjectStorage
	publications repositories.PublicationRepository
	renderer     SummaryRenderer
	layout       *CacheLayout
	bucket       string
	prefix       string
}

// NewSummaryPublisher creates a new summary publisher
func NewSummaryPublisher(
	storage providers.ObjectStorage,
	publications repositories.PublicationRepository,
	renderer SummaryRenderer,
	layout *CacheLayout,
	bucket string,
	prefix string,
) *SummaryPublisher {
	return &SummaryPublisher{
		storage:      storage,
		publications: publications,
		renderer:     renderer,
		layout:       layout,
		bucket:       bucket,
		prefix:       strings.Trim(prefix, "/"),
	}
}

// Format returns the extension of the files this publisher writes.
func (p *SummaryPublisher) Format() string {
	return p.renderer.Extension()
}

// Publish renders the summary, writes it under the patient's summaries
// directory, uploads it with overwrite and marks recordIDs processed. On
// failure the local file is left in place. generatedAt names the file and
// stamps the patient row.
func (p *SummaryPublisher) Publish(ctx context.Context, patient *entities.Patient, summary *entities.PatientSummary, recordIDs []string, generatedAt time.Time) (*PublishResult, error) {
	now := generatedAt.UTC()

	data, err := p.renderer.Render(summary)
	if err != nil {
		return nil, apperrors.NewPublishError("failed to render summary", err)
	}

	fileName := SummaryFileName(patient.ID, now, p.renderer.Extension())
	result := &PublishResult{
		FileName:    fileName,
		LocalPath:   p.layout.SummaryPath(patient.UserID, patient.ID, fileName),
		Bucket:      p.bucket,
		RemotePath:  RemoteSummaryPath(p.prefix, patient.UserID, patient.ID, fileName),
		GeneratedAt: now,
	}

	if err := writeFileAtomic(result.LocalPath, data); err != nil {
		return nil, apperrors.NewPublishError("failed to write summary", err)
	}

	if err := p.storage.Upload(ctx, p.bucket, result.RemotePath, data, p.renderer.ContentType(), true); err != nil {
		return result, apperrors.NewPublishError("failed to upload "+result.RemotePath, err)
	}

	if err := p.publications.RecordPublication(ctx, patient.ID, recordIDs, now); err != nil {
		return result, apperrors.NewPublishError("failed to record publication", err)
	}

	log.Info().
		Str("patient_id", patient.ID).
		Str("bucket", p.bucket).
		Str("remote_path", result.RemotePath).
		Int("records", len(recordIDs)).
		Msg("Published summary")
	return result, nil
}

// RemoteSummaryPath is <prefix>/<user_id>/<patient_id>/<file>.
func RemoteSummaryPath(prefix, userID, patientID, fileName string) string {
	return path.Join(prefix, userID, patientID, fileName)
}
