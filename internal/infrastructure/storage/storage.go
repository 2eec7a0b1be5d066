// Package storage implements port.FileStorage on the local filesystem and on MinIO.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
)

var (
	// ErrNotFound is returned when no object is stored under a key
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for empty, absolute or escaping keys
	ErrInvalidKey = errors.New("invalid storage key")
)

const (
	BackendLocal = "local"
	BackendMinio = "minio"
)

// Config selects and configures a storage backend
type Config struct {
	Backend string
	BaseDir string
	Minio   MinioConfig
}

// New builds the configured backend
func New(ctx context.Context, cfg Config, logger *zap.Logger) (port.FileStorage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		return NewLocalFileStorage(cfg.BaseDir, logger), nil
	case BackendMinio:
		s, err := NewMinioStorage(cfg.Minio, logger)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ValidateKey checks that key is a clean relative slash-separated path
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %s is not canonical", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %s", ErrInvalidKey, key)
		}
	}
	return nil
}
