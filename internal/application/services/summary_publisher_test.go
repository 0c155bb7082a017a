package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayurlekha/processing-engine/internal/application/services"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSummaryPublisher_Publish(t *testing.T) {
	t.Run("writes, uploads and records", func(t *testing.T) {
		dir := t.TempDir()
		storage := new(MockObjectStorage)
		pubs := new(MockPublicationRepository)
		storage.On("Upload", mock.Anything, "medical-documents", mock.MatchedBy(func(p string) bool {
			return strings.HasPrefix(p, "medical-records/u1/p1/p1_Ayurlekha_") && strings.HasSuffix(p, ".json")
		}), mock.Anything, "application/json", true).Return(nil)
		pubs.On("RecordPublication", mock.Anything, "p1", []string{"r1", "r2"}, mock.Anything).Return(nil)

		publisher := services.NewSummaryPublisher(storage, pubs, services.JSONRenderer{}, services.NewCacheLayout(dir), "medical-documents", "medical-records/")

		result, err := publisher.Publish(context.Background(), testPatient(), sampleSummary(), []string{"r1", "r2"}, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "u1", "p1", "summaries", result.FileName), result.LocalPath)
		assert.Equal(t, "p1_Ayurlekha_20260314T092653.json", result.FileName)
		data, err := os.ReadFile(result.LocalPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"primaryAlert"`)
		storage.AssertExpectations(t)
		pubs.AssertExpectations(t)
	})

	t.Run("upload failure skips database update and keeps local file", func(t *testing.T) {
		storage := new(MockObjectStorage)
		pubs := new(MockPublicationRepository)
		storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("403"))

		publisher := services.NewSummaryPublisher(storage, pubs, services.MarkdownRenderer{}, services.NewCacheLayout(t.TempDir()), "medical-documents", "medical-records")

		result, err := publisher.Publish(context.Background(), testPatient(), sampleSummary(), []string{"r1"}, time.Now())

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePublish))
		require.NotNil(t, result)
		assert.FileExists(t, result.LocalPath)
		pubs.AssertNotCalled(t, "RecordPublication", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRemoteSummaryPath(t *testing.T) {
	assert.Equal(t, "medical-records/u1/p1/f.md", services.RemoteSummaryPath("medical-records", "u1", "p1", "f.md"))
}
