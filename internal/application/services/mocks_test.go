package services_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) List(ctx context.Context) ([]*entities.Patient, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Patient), args.Error(1)
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

type MockMedicalRecordRepository struct {
	mock.Mock
}

func (m *MockMedicalRecordRepository) ListUnprocessedByPatient(ctx context.Context, patientID string) ([]*entities.MedicalRecord, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MedicalRecord), args.Error(1)
}

type MockPublicationRepository struct {
	mock.Mock
}

func (m *MockPublicationRepository) RecordPublication(ctx context.Context, patientID string, recordIDs []string, generatedAt time.Time) error {
	args := m.Called(ctx, patientID, recordIDs, generatedAt)
	return args.Error(0)
}

type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	args := m.Called(ctx, bucket, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStorage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	args := m.Called(ctx, bucket, path, data, contentType, upsert)
	return args.Error(0)
}

type MockDocumentExtractor struct {
	mock.Mock
}

func (m *MockDocumentExtractor) ExtractDocument(ctx context.Context, doc *entities.DocumentImage) (*entities.Extraction, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Extraction), args.Error(1)
}

type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, history, patientID, userID string) (*entities.SummaryDraft, error) {
	args := m.Called(ctx, history, patientID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SummaryDraft), args.Error(1)
}

type MockMedicineJudge struct {
	mock.Mock
}

func (m *MockMedicineJudge) JudgeMedicine(ctx context.Context, name, question, evidence string) (*entities.MedicineJudgement, error) {
	args := m.Called(ctx, name, question, evidence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MedicineJudgement), args.Error(1)
}

type MockWebSearcher struct {
	mock.Mock
}

func (m *MockWebSearcher) Search(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

type MockMemoryStore struct {
	mock.Mock
}

func (m *MockMemoryStore) Add(ctx context.Context, entry *entities.MemoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockMemoryStore) Search(ctx context.Context, patientID, query string, limit int) ([]*entities.MemoryEntry, error) {
	args := m.Called(ctx, patientID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MemoryEntry), args.Error(1)
}

type MockPatientLock struct {
	mock.Mock
}

func (m *MockPatientLock) Acquire(ctx context.Context, patientID string, ttl time.Duration) (func(context.Context) error, bool, error) {
	args := m.Called(ctx, patientID, ttl)
	release, _ := args.Get(0).(func(context.Context) error)
	return release, args.Bool(1), args.Error(2)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.SummaryEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

// Fixtures

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPatient() *entities.Patient {
	return &entities.Patient{ID: "p1", UserID: "u1"}
}

func testRecord(id, objectPath string) *entities.MedicalRecord {
	return &entities.MedicalRecord{
		ID:        id,
		PatientID: "p1",
		FileURL:   "https://example.supabase.co/storage/v1/object/public/medical-documents/" + objectPath,
	}
}
