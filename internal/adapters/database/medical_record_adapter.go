package database

import (
	"context"
	"database/sql"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/repositories"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/postgres"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/doug-martin/goqu/v9"
)

const medicalRecordsTable = "medical_records"

// MedicalRecordAdapter implements MedicalRecordRepository
type MedicalRecordAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.MedicalRecordRepository = (*MedicalRecordAdapter)(nil)

// NewMedicalRecordAdapter creates a new medical record adapter
func NewMedicalRecordAdapter(client *postgres.Client) *MedicalRecordAdapter {
	return &MedicalRecordAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListUnprocessedByPatient returns the patient's records whose processed
// flag is false or null, oldest first.
func (a *MedicalRecordAdapter) ListUnprocessedByPatient(ctx context.Context, patientID string) ([]*entities.MedicalRecord, error) {
	query, args, err := a.db.Select("id", "patient_id", "file_url", "processed", "created_at").
		From(medicalRecordsTable).
		Where(
			goqu.Ex{"patient_id": patientID},
			goqu.I("processed").IsNotTrue(),
		).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list medical records", err)
	}
	defer rows.Close()

	var records []*entities.MedicalRecord
	for rows.Next() {
		var (
			r         entities.MedicalRecord
			fileURL   sql.NullString
			processed sql.NullBool
			createdAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.PatientID, &fileURL, &processed, &createdAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan medical record", err)
		}
		r.FileURL = fileURL.String
		r.Processed = processed.Valid && processed.Bool
		if createdAt.Valid {
			r.CreatedAt = utc(createdAt.Time)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate medical records", err)
	}
	return records, nil
}
