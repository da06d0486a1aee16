// Package storage provides S3-compatible object storage for vehicle photos.
// The API binds one bucket per store; callers only deal in object keys.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key has no object behind it.
var ErrObjectNotFound = errors.New("object not found")

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectStore defines the object operations the photo pipeline needs.
type ObjectStore interface {
	// Put stores the reader's content under key.
	Put(ctx context.Context, key, contentType string, reader io.Reader, size int64) error

	// Open returns the object content. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PresignGet creates a time-limited download URL for key.
	PresignGet(ctx context.Context, key string) (*PresignedURL, error)
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketVehiclePhotos() string
	IsMinIOEnabled() bool
}
