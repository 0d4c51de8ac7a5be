package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3ArchiverRequiresSettings(t *testing.T) {
	_, err := NewS3Archiver(&Config{Bucket: "invoices"})
	assert.Error(t, err)

	_, err = NewS3Archiver(&Config{AccessKeyID: "k", AccessKeySecret: "s"})
	assert.Error(t, err)
}

func TestArchiveUploadsUnderProviderPrefix(t *testing.T) {
	var (
		mu          sync.Mutex
		method      string
		requestPath string
		contentType string
		body        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		requestPath = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	archiver, err := NewS3Archiver(&Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "invoices",
		Region:          "us-east-1",
	})
	require.NoError(t, err)

	err = archiver.Archive(context.Background(), "amazon", "amazon_2024-03-09_402-1.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/invoices/amazon/amazon_2024-03-09_402-1.pdf", requestPath)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, []byte("%PDF-1.4"), body)
}

func TestArchiveReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	archiver, err := NewS3Archiver(&Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "invoices",
		Region:          "us-east-1",
	})
	require.NoError(t, err)

	err = archiver.Archive(context.Background(), "freebox", "f.pdf", []byte("%PDF"))
	assert.Error(t, err)
}
