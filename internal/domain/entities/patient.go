package entities

import "time"

// Patient is a person whose medical records are summarized. Rows are created
// by the application; the pipeline only stamps SummaryGeneratedAt.
type Patient struct {
	ID                 string     `json:"id" db:"id"`
	UserID             string     `json:"user_id" db:"user_id"`
	SummaryGeneratedAt *time.Time `json:"ayurlekha_generated_at,omitempty" db:"ayurlekha_generated_at"`
}

// MedicalRecord is one uploaded document belonging to a patient.
type MedicalRecord struct {
	ID        string    `json:"id" db:"id"`
	PatientID string    `json:"patient_id" db:"patient_id"`
	FileURL   string    `json:"file_url" db:"file_url"`
	Processed bool      `json:"processed" db:"processed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FileReference locates an object inside the storage backend.
type FileReference struct {
	Bucket string
	Path   string
}
