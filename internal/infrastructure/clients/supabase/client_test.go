package supabase

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayurlekha/processing-engine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *StorageClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewStorageClient(&config.StorageConfig{URL: server.URL + "/", ServiceKey: "service-key"})
	require.NoError(t, err)
	return client
}

func TestDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/storage/v1/object/medical-documents/u1/p1/scan.jpg", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("image-bytes"))
	})

	data, err := client.Download(context.Background(), "medical-documents", "u1/p1/scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestDownload_CancelledContext(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Download(ctx, "medical-documents", "u1/p1/scan.jpg")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDownload_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	t.Cleanup(func() { close(release) })
	client.timeout = 20 * time.Millisecond

	_, err := client.Download(context.Background(), "medical-documents", "u1/p1/scan.jpg")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/medical-documents/medical-records/u1/p1/p1_Ayurlekha_20260314T092653.json", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `{"summary":""}`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Key":"medical-documents/medical-records/u1/p1/p1_Ayurlekha_20260314T092653.json"}`))
	})

	err := client.Upload(context.Background(), "medical-documents",
		"medical-records/u1/p1/p1_Ayurlekha_20260314T092653.json",
		[]byte(`{"summary":""}`), "application/json", true)
	require.NoError(t, err)
}

func TestNewStorageClient_Validation(t *testing.T) {
	_, err := NewStorageClient(&config.StorageConfig{})
	assert.Error(t, err)

	_, err = NewStorageClient(&config.StorageConfig{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}
