// Package storage persists uploaded media on local disk or in an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"

	"vibefeed/internal/config"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Store writes objects and returns the URL clients use to fetch them.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Backend() string
}

// NewStore builds the backend selected by MEDIA_BACKEND.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.MediaBackend {
	case BackendLocal, "":
		return NewLocalStore(cfg.UploadDir, LocalURLPrefix)
	case BackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.MediaBackend)
	}
}
