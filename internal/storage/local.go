package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// LocalStore keeps media on the local filesystem under a root directory.
// Returned paths are absolute so a co-located oracle can open them.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "local storage directory is not configured")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to resolve storage directory")
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to create storage directory %s", abs)
	}
	return &LocalStore{root: abs}, nil
}

// Backend implements MediaStore
func (s *LocalStore) Backend() string { return "local" }

// Save implements MediaStore
func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (result string, err error) {
	_, span := observability.TraceStorageFunction(ctx, "local_save",
		attribute.String("storage.key", key),
		attribute.Int64("storage.size", size),
		attribute.String("storage.content_type", contentType),
	)
	defer observability.FinishSpan(span, &err)

	if err := validateKey(key); err != nil {
		return "", contextutils.WrapError(contextutils.ErrStorageFailed, err.Error())
	}

	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to create directory: %v", err))
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to create %s: %v", key, err))
	}

	written, copyErr := io.Copy(f, io.LimitReader(r, size+1))
	closeErr := f.Close()
	if copyErr == nil && written != size {
		copyErr = fmt.Errorf("wrote %d bytes, expected %d", written, size)
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(dest)
		return "", contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to write %s: %v", key, errors.Join(copyErr, closeErr)))
	}

	return dest, nil
}

// Delete implements MediaStore
func (s *LocalStore) Delete(ctx context.Context, path string) (err error) {
	_, span := observability.TraceStorageFunction(ctx, "local_delete", attribute.String("storage.path", path))
	defer observability.FinishSpan(span, &err)

	clean := filepath.Clean(path)
	if !strings.HasPrefix(clean, s.root+string(filepath.Separator)) {
		return contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("path %s is outside the storage root", path))
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to delete %s: %v", path, err))
	}
	return nil
}

// Ping implements MediaStore
func (s *LocalStore) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailed, err.Error())
	}
	if !info.IsDir() {
		return contextutils.WrapError(contextutils.ErrStorageFailed, s.root+" is not a directory")
	}
	return nil
}
