package providers

import "context"

// ObjectStorage is the blob side of the storage backend.
type ObjectStorage interface {
	// Download returns the object's bytes
	Download(ctx context.Context, bucket, path string) ([]byte, error)

	// Upload writes the object, replacing an existing one when upsert is set
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
}
