package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/repositories"
	"github.com/ayurlekha/processing-engine/internal/infrastructure/clients/postgres"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

const patientsTable = "patients"

// PatientAdapter implements PatientRepository
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.PatientRepository = (*PatientAdapter)(nil)

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) *PatientAdapter {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// List returns every patient ordered by ID
func (a *PatientAdapter) List(ctx context.Context) ([]*entities.Patient, error) {
	query, args, err := a.db.Select("id", "user_id", "ayurlekha_generated_at").
		From(patientsTable).
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	var patients []*entities.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate patients", err)
	}
	return patients, nil
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	query, args, err := a.db.Select("id", "user_id", "ayurlekha_generated_at").
		From(patientsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	p, err := scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*entities.Patient, error) {
	var (
		p           entities.Patient
		generatedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.UserID, &generatedAt); err != nil {
		return nil, err
	}
	if generatedAt.Valid {
		t := generatedAt.Time.UTC()
		p.SummaryGeneratedAt = &t
	}
	return &p, nil
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
