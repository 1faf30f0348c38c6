// Package storage keeps completed tournaments in object storage.
package storage

import (
	"context"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader is an S3-compatible bucket.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	GetPublicURL(key string) string
}
