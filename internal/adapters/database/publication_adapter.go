package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/repositories"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/postgres"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
)

// PublicationAdapter implements PublicationRepository
type PublicationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.PublicationRepository = (*PublicationAdapter)(nil)

// NewPublicationAdapter creates a new publication adapter
func NewPublicationAdapter(client *postgres.Client) *PublicationAdapter {
	return &PublicationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// RecordPublication stamps patients.ayurlekha_generated_at and flags the
// records processed in a single transaction.
func (a *PublicationAdapter) RecordPublication(ctx context.Context, patientID string, recordIDs []string, generatedAt time.Time) error {
	stampQuery, stampArgs, err := a.db.Update(patientsTable).
		Set(goqu.Record{"ayurlekha_generated_at": utc(generatedAt)}).
		Where(goqu.Ex{"id": patientID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build patient update", err)
	}

	var markQuery string
	var markArgs []any
	if len(recordIDs) > 0 {
		markQuery, markArgs, err = a.db.Update(medicalRecordsTable).
			Set(goqu.Record{"processed": true}).
			Where(
				goqu.Ex{"id": recordIDs},
				goqu.Ex{"patient_id": patientID},
			).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build record update", err)
		}
	}

	return a.client.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stampQuery, stampArgs...)
		if err != nil {
			return apperrors.NewInternalError("failed to update patient", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperrors.NewNotFoundError("patient not found")
		}

		if markQuery == "" {
			return nil
		}
		res, err = tx.ExecContext(ctx, markQuery, markArgs...)
		if err != nil {
			return apperrors.NewInternalError("failed to mark records processed", err)
		}
		if n, err := res.RowsAffected(); err == nil && int(n) != len(recordIDs) {
			log.Warn().
				Str("patient_id", patientID).
				Int("expected", len(recordIDs)).
				Int64("marked", n).
				Msg("some records were not marked processed")
		}
		return nil
	})
}
