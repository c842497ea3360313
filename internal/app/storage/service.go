/*
Package storage keeps message attachments in S3-compatible object storage.

Attachments are uploaded by the API server after validation and handed back to clients as
short-lived presigned download links.
*/
package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService defines the public interface for the file storage service.
type StorageService interface {
	// Upload streams body to key.
	Upload(ctx context.Context, key string, body io.Reader, mimeType string, size int64) error

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error

	// Ping checks that the bucket is reachable with the configured credentials.
	Ping(ctx context.Context) error
}

// NewStorageService is the factory function for StorageService.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(ctx, cfg)
}
