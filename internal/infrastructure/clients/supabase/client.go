package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayurlekha/processing-engine/pkg/config"
	storage_go "github.com/supabase-community/storage-go"
)

// StorageClient wraps the Supabase Storage SDK behind context-aware calls.
// The SDK calls do not take a context, so each call runs in its own
// goroutine and is abandoned when ctx is done or the timeout passes.
type StorageClient struct {
	client  *storage_go.Client
	timeout time.Duration
}

// NewStorageClient creates a storage client for the project at cfg.URL.
func NewStorageClient(cfg *config.StorageConfig) (*StorageClient, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("supabase url is required")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("supabase service key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	endpoint := strings.TrimRight(cfg.URL, "/") + "/storage/v1"
	return &StorageClient{
		client:  storage_go.NewClient(endpoint, cfg.ServiceKey, map[string]string{"apikey": cfg.ServiceKey}),
		timeout: timeout,
	}, nil
}

// Download returns the object stored at bucket/path.
func (c *StorageClient) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	var data []byte
	err := c.call(ctx, func() error {
		var err error
		data, err = c.client.DownloadFile(bucket, strings.Trim(path, "/"))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download %s/%s: empty object", bucket, path)
	}
	return data, nil
}

// Upload stores data at bucket/path. With upsert an existing object is
// replaced; without it the request fails if the object exists.
func (c *StorageClient) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}
	err := c.call(ctx, func() error {
		_, err := c.client.UploadFile(bucket, strings.Trim(path, "/"), bytes.NewReader(data), opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return nil
}

// call runs fn until it returns, ctx is done or the client timeout passes.
func (c *StorageClient) call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
