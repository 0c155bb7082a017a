package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayurlekha/processing-engine/internal/application/services"
	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeDocument(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDocumentAnalyzer_Analyze(t *testing.T) {
	t.Run("second call is served from cache", func(t *testing.T) {
		dir := t.TempDir()
		extractor := new(MockDocumentExtractor)
		extractor.On("ExtractDocument", mock.Anything, mock.MatchedBy(func(d *entities.DocumentImage) bool {
			return d.FileName == "p1_scan.png" && d.MIMEType == "image/png"
		})).Return(&entities.Extraction{DetailedAnalysis: "CBC normal", ExtractedMedicines: []string{}}, nil).Once()

		analyzer := services.NewDocumentAnalyzer(services.NewCacheLayout(dir), nil, extractor, nil)
		docPath := writeDocument(t, dir, "p1_scan.png", pngBytes(t))
		record := testRecord("r1", "u1/p1/scan.png")

		first, cached, err := analyzer.Analyze(context.Background(), testPatient(), record, docPath)
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, "CBC normal", first.Analysis)
		assert.Equal(t, "p1_scan.png", first.SourceFile)
		assert.FileExists(t, filepath.Join(dir, "u1", "p1", "analyses", "r1_analysis.json"))

		second, cached, err := analyzer.Analyze(context.Background(), testPatient(), record, docPath)
		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, first.Analysis, second.Analysis)
		extractor.AssertNumberOfCalls(t, "ExtractDocument", 1)
	})

	t.Run("verifies extracted medicines", func(t *testing.T) {
		dir := t.TempDir()
		extractor := new(MockDocumentExtractor)
		extractor.On("ExtractDocument", mock.Anything, mock.Anything).
			Return(&entities.Extraction{DetailedAnalysis: "Rx", ExtractedMedicines: []string{"Dolo 650", "Pantop"}}, nil)
		searcher := new(MockWebSearcher)
		searcher.On("Search", mock.Anything, mock.Anything).Return("[]", nil)

		verifier := newVerifier(searcher, nil, 0)
		analyzer := services.NewDocumentAnalyzer(services.NewCacheLayout(dir), nil, extractor, verifier)

		got, _, err := analyzer.Analyze(context.Background(), testPatient(), testRecord("r1", "a.png"), writeDocument(t, dir, "p1_a.png", pngBytes(t)))

		require.NoError(t, err)
		require.Len(t, got.MedicineVerifications, 2)
		assert.Equal(t, "Dolo 650", got.MedicineVerifications[0].Medicine)
		assert.Equal(t, "Pantop", got.MedicineVerifications[1].Medicine)
	})

	t.Run("undecodable document", func(t *testing.T) {
		dir := t.TempDir()
		extractor := new(MockDocumentExtractor)
		analyzer := services.NewDocumentAnalyzer(services.NewCacheLayout(dir), nil, extractor, nil)

		_, _, err := analyzer.Analyze(context.Background(), testPatient(), testRecord("r1", "a.pdf"), writeDocument(t, dir, "p1_a.pdf", []byte("%PDF-1.4")))

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDocumentLoad))
		extractor.AssertNotCalled(t, "ExtractDocument", mock.Anything, mock.Anything)
	})

	t.Run("extraction failure leaves no cache file", func(t *testing.T) {
		dir := t.TempDir()
		extractor := new(MockDocumentExtractor)
		extractor.On("ExtractDocument", mock.Anything, mock.Anything).Return(nil, errors.New("503"))
		analyzer := services.NewDocumentAnalyzer(services.NewCacheLayout(dir), nil, extractor, nil)

		_, _, err := analyzer.Analyze(context.Background(), testPatient(), testRecord("r1", "a.png"), writeDocument(t, dir, "p1_a.png", pngBytes(t)))

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtraction))
		assert.NoFileExists(t, filepath.Join(dir, "u1", "p1", "analyses", "r1_analysis.json"))
	})

	t.Run("corrupt cache is re-analyzed", func(t *testing.T) {
		dir := t.TempDir()
		layout := services.NewCacheLayout(dir)
		cachePath := layout.AnalysisPath("u1", "p1", "r1")
		require.NoError(t, os.MkdirAll(filepath.Dir(cachePath), 0o755))
		require.NoError(t, os.WriteFile(cachePath, []byte("{truncated"), 0o644))

		extractor := new(MockDocumentExtractor)
		extractor.On("ExtractDocument", mock.Anything, mock.Anything).Return(&entities.Extraction{DetailedAnalysis: "fresh"}, nil)
		analyzer := services.NewDocumentAnalyzer(layout, nil, extractor, nil)

		got, cached, err := analyzer.Analyze(context.Background(), testPatient(), testRecord("r1", "a.png"), writeDocument(t, dir, "p1_a.png", pngBytes(t)))

		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, "fresh", got.Analysis)
	})

	t.Run("cancelled verification is not cached", func(t *testing.T) {
		dir := t.TempDir()
		layout := services.NewCacheLayout(dir)
		extractor := new(MockDocumentExtractor)
		extractor.On("ExtractDocument", mock.Anything, mock.Anything).
			Return(&entities.Extraction{DetailedAnalysis: "Rx", ExtractedMedicines: []string{"Dolo 650", "Pantop"}}, nil)
		searcher := new(MockWebSearcher)
		searcher.On("Search", mock.Anything, mock.Anything).Return("[]", nil)
		docPath := writeDocument(t, dir, "p1_a.png", pngBytes(t))

		slow := services.NewDocumentAnalyzer(layout, nil, extractor, newVerifier(searcher, nil, time.Hour))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		got, cached, err := slow.Analyze(ctx, testPatient(), testRecord("r1", "a.png"), docPath)

		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, got)
		assert.False(t, cached)
		assert.NoFileExists(t, layout.AnalysisPath("u1", "p1", "r1"))

		rerun := services.NewDocumentAnalyzer(layout, nil, extractor, newVerifier(searcher, nil, 0))
		got, cached, err = rerun.Analyze(context.Background(), testPatient(), testRecord("r1", "a.png"), docPath)

		require.NoError(t, err)
		assert.False(t, cached)
		require.Len(t, got.MedicineVerifications, 2)
		for _, v := range got.MedicineVerifications {
			assert.Equal(t, entities.VerificationStatusVerified, v.Status)
		}
		extractor.AssertNumberOfCalls(t, "ExtractDocument", 2)
	})
}
