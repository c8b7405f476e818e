package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"safereport/internal/config"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
)

const s3Scheme = "s3://"

// S3Store keeps media in an S3-compatible bucket (MinIO, R2, AWS)
type S3Store struct {
	client *minio.Client
	bucket string
	region string
	logger *observability.Logger
}

// NewS3Store creates a client for cfg. It does not contact the server.
func NewS3Store(cfg config.S3Config, logger *observability.Logger) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "s3 storage needs an endpoint and a bucket")
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create S3 client")
	}

	return &S3Store{client: client, bucket: cfg.Bucket, region: cfg.Region, logger: logger}, nil
}

// Backend implements MediaStore
func (s *S3Store) Backend() string { return "s3" }

// EnsureBucket creates the bucket if it does not exist yet
func (s *S3Store) EnsureBucket(ctx context.Context) (err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "s3_ensure_bucket", attribute.String("storage.bucket", s.bucket))
	defer observability.FinishSpan(span, &err)

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to check bucket %s: %v", s.bucket, err))
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to create bucket %s: %v", s.bucket, err))
	}
	s.logger.Info(ctx, "Created media bucket", map[string]interface{}{"bucket": s.bucket})
	return nil
}

// Save implements MediaStore
func (s *S3Store) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (result string, err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "s3_save",
		attribute.String("storage.bucket", s.bucket),
		attribute.String("storage.key", key),
		attribute.Int64("storage.size", size),
	)
	defer observability.FinishSpan(span, &err)

	if err := validateKey(key); err != nil {
		return "", contextutils.WrapError(contextutils.ErrStorageFailed, err.Error())
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to put object %s: %v", key, err))
	}
	return s.objectPath(key), nil
}

// Delete implements MediaStore
func (s *S3Store) Delete(ctx context.Context, path string) (err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "s3_delete", attribute.String("storage.path", path))
	defer observability.FinishSpan(span, &err)

	key, err := s.keyFromPath(path)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to delete object %s: %v", key, err))
	}
	return nil
}

// Ping implements MediaStore
func (s *S3Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailed, err.Error())
	}
	if !exists {
		return contextutils.WrapError(contextutils.ErrStorageFailed, "bucket "+s.bucket+" does not exist")
	}
	return nil
}

func (s *S3Store) objectPath(key string) string {
	return s3Scheme + s.bucket + "/" + key
}

func (s *S3Store) keyFromPath(path string) (string, error) {
	prefix := s3Scheme + s.bucket + "/"
	key, ok := strings.CutPrefix(path, prefix)
	if !ok || key == "" {
		return "", contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("path %s does not belong to bucket %s", path, s.bucket))
	}
	return key, nil
}
