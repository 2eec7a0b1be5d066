package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
)

// MinioConfig holds the object store connection settings
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	Region    string
}

// MinioStorage implements port.FileStorage on a MinIO or S3-compatible bucket
type MinioStorage struct {
	client *minio.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewMinioStorage creates the client. No request is made until the first operation.
func NewMinioStorage(cfg MinioConfig, logger *zap.Logger) (*MinioStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		s.logger.Info("Created storage bucket", zap.String("bucket", s.bucket))
	}
	return nil
}

func (s *MinioStorage) Save(ctx context.Context, key string, content []byte) error {
	object, err := s.objectName(key)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		s.logger.Error("Failed to upload object", zap.String("object", object), zap.Error(err))
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (s *MinioStorage) Read(ctx context.Context, key string) ([]byte, error) {
	object, err := s.objectName(key)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(err, key, "failed to get object")
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap(err, key, "failed to read object")
	}
	return content, nil
}

func (s *MinioStorage) Exists(ctx context.Context, key string) (bool, error) {
	object, err := s.objectName(key)
	if err != nil {
		return false, err
	}

	_, err = s.client.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{})
	if isNoSuchKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	object, err := s.objectName(key)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		s.logger.Error("Failed to delete object", zap.String("object", object), zap.Error(err))
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *MinioStorage) Size(ctx context.Context, key string) (int64, error) {
	object, err := s.objectName(key)
	if err != nil {
		return 0, err
	}

	info, err := s.client.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return 0, s.wrap(err, key, "failed to stat object")
	}
	return info.Size, nil
}

// objectName maps a storage key to its object name under the configured prefix
func (s *MinioStorage) objectName(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if s.prefix == "" {
		return key, nil
	}
	return path.Join(s.prefix, key), nil
}

func (s *MinioStorage) wrap(err error, key, msg string) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Verify interface compliance
var _ port.FileStorage = (*MinioStorage)(nil)
