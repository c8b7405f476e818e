package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"safereport/internal/config"
	"safereport/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportMediaKey(t *testing.T) {
	key := ReportMediaKey("r-1", "Photo Of Scene.JPG")
	assert.True(t, strings.HasPrefix(key, "reports/r-1/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	key = ReportMediaKey("r-1", "../../etc/passwd")
	assert.True(t, strings.HasPrefix(key, "reports/r-1/"))
	assert.NotContains(t, key, "..")

	assert.NotEqual(t, ReportMediaKey("r-1", "a.png"), ReportMediaKey("r-1", "a.png"))
}

func TestLocalStore_SaveAndDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("fake image bytes")
	path, err := store.Save(ctx, "reports/r1/a.png", bytes.NewReader(content), int64(len(content)), "image/png")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	require.NoError(t, store.Delete(ctx, path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is fine
	assert.NoError(t, store.Delete(ctx, path))
}

func TestLocalStore_SaveRejectsSizeMismatch(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "reports/r1/short.bin", strings.NewReader("abc"), 10, "application/octet-stream")
	require.Error(t, err)

	_, err = store.Save(context.Background(), "reports/r1/long.bin", strings.NewReader("abcdef"), 3, "application/octet-stream")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(store.root, "reports", "r1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStore_RejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Save(ctx, "../outside.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)
	_, err = store.Save(ctx, "/abs.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)

	assert.Error(t, store.Delete(ctx, "/etc/hosts"))
}

func TestLocalStore_Ping(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, "local", store.Backend())

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, store.Ping(context.Background()))
}

func TestNewMediaStore(t *testing.T) {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	store, err := NewMediaStore(context.Background(), config.StorageConfig{Backend: "local", LocalDir: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.Equal(t, "local", store.Backend())

	_, err = NewMediaStore(context.Background(), config.StorageConfig{Backend: "ftp"}, logger)
	assert.Error(t, err)

	_, err = NewMediaStore(context.Background(), config.StorageConfig{Backend: "s3"}, logger)
	assert.Error(t, err)
}

// fakeS3 answers the handful of S3 calls the store makes
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	// Bucket calls arrive as "/media/"
	case r.Method == http.MethodHead && strings.TrimSuffix(p, "/") == "media":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && strings.HasPrefix(p, "media/"):
		body, _ := io.ReadAll(r.Body)
		f.objects[strings.TrimPrefix(p, "media/")] = body
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete && strings.HasPrefix(p, "media/"):
		delete(f.objects, strings.TrimPrefix(p, "media/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestS3Store_SaveAndDelete(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	store, err := NewS3Store(config.S3Config{
		Endpoint:        server.URL,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		Bucket:          "media",
		Region:          "us-east-1",
	}, logger)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx))
	require.NoError(t, store.Ping(ctx))

	path, err := store.Save(ctx, "reports/r1/a.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "s3://media/reports/r1/a.txt", path)

	fake.mu.Lock()
	assert.Contains(t, fake.objects, "reports/r1/a.txt")
	fake.mu.Unlock()

	require.NoError(t, store.Delete(ctx, path))
	fake.mu.Lock()
	assert.NotContains(t, fake.objects, "reports/r1/a.txt")
	fake.mu.Unlock()
}

func TestS3Store_KeyFromPath(t *testing.T) {
	store := &S3Store{bucket: "media"}

	key, err := store.keyFromPath("s3://media/reports/r1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "reports/r1/a.png", key)

	_, err = store.keyFromPath("s3://other/reports/r1/a.png")
	assert.Error(t, err)
	_, err = store.keyFromPath("/var/uploads/a.png")
	assert.Error(t, err)
}
