package storage

import (
	"alcyxob/navistream/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

var ErrObjectNotFound = errors.New("object not found in storage")

// ObjectInfo describes one stored object as returned by ListObjects.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// PutObject writes size bytes from body under objectKey. Callers that retry
	// must pass a fresh reader each attempt.
	PutObject(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) error

	// GetObject opens an object for reading. Returns ErrObjectNotFound if absent.
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// DeleteObject removes an object. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, objectKey string) error

	// ListObjects returns every object whose key starts with prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// ObjectURL is the public URL an object is served from.
	ObjectURL(objectKey string) string
}

// New opens the object store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, s3cfg config.S3Config, logger zerolog.Logger) (FileStorage, error) {
	switch cfg.Driver {
	case "s3", "":
		return NewS3Storage(ctx, s3cfg, logger)
	case "local":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
