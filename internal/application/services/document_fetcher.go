package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultReferenceMarker separates the storage host from bucket/path in a
// public object URL.
const DefaultReferenceMarker = "/object/public/"

// DocumentFetcher downloads a record's document into the local cache
type DocumentFetcher struct {
	storage providers.ObjectStorage
	layout  *CacheLayout
	marker  string
}

// NewDocumentFetcher creates a new document fetcher
func NewDocumentFetcher(storage providers.ObjectStorage, layout *CacheLayout, marker string) *DocumentFetcher {
	if marker == "" {
		marker = DefaultReferenceMarker
	}
	return &DocumentFetcher{
		storage: storage,
		layout:  layout,
		marker:  marker,
	}
}

// ParseFileReference splits a public object URL on marker into bucket and
// object path.
func ParseFileReference(fileURL, marker string) (entities.FileReference, error) {
	if marker == "" {
		marker = DefaultReferenceMarker
	}

	parts := strings.Split(strings.TrimSpace(fileURL), marker)
	if len(parts) != 2 {
		return entities.FileReference{}, apperrors.NewMalformedReferenceError(fileURL)
	}

	rest := parts[1]
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}

	bucket, objectPath, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(objectPath, "/") == "" {
		return entities.FileReference{}, apperrors.NewMalformedReferenceError(fileURL)
	}
	return entities.FileReference{Bucket: bucket, Path: objectPath}, nil
}

// Fetch returns the local path of the record's document, downloading it
// only when it is not cached yet.
func (f *DocumentFetcher) Fetch(ctx context.Context, patient *entities.Patient, record *entities.MedicalRecord) (string, error) {
	ref, err := ParseFileReference(record.FileURL, f.marker)
	if err != nil {
		return "", err
	}

	localPath := f.layout.DocumentPath(patient.UserID, patient.ID, ref.Path)
	if fileExists(localPath) {
		log.Debug().Str("patient_id", patient.ID).Str("record_id", record.ID).Str("path", localPath).Msg("Document already cached")
		return localPath, nil
	}

	data, err := f.storage.Download(ctx, ref.Bucket, ref.Path)
	if err != nil {
		return "", apperrors.NewDownloadError("failed to download "+ref.Bucket+"/"+ref.Path, err)
	}
	if err := writeFileAtomic(localPath, data); err != nil {
		return "", apperrors.NewDownloadError("failed to store downloaded document", err)
	}

	log.Info().
		Str("patient_id", patient.ID).
		Str("record_id", record.ID).
		Str("bucket", ref.Bucket).
		Str("path", ref.Path).
		Int("bytes", len(data)).
		Msg("Downloaded document")
	return localPath, nil
}
