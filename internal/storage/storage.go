// Package storage persists uploaded report media.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"safereport/internal/config"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"github.com/google/uuid"
)

// MediaStore persists media objects and hands back the path recorded on the report
type MediaStore interface {
	// Save writes size bytes from r under key and returns the stored object's path
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes an object by the path Save returned. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	// Backend names the implementation, for logs and health output
	Backend() string
}

// NewMediaStore builds the store selected by cfg.Backend
func NewMediaStore(ctx context.Context, cfg config.StorageConfig, logger *observability.Logger) (MediaStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3", "minio":
		store, err := NewS3Store(cfg.S3, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown storage backend %q", cfg.Backend)
	}
}

// ReportMediaKey builds the object key for one file of a report.
// The original filename only contributes its extension.
func ReportMediaKey(reportID, originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return path.Join("reports", reportID, uuid.NewString()+ext)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
