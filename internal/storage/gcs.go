package storage

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
)

// Archive persists receipt images in a GCS bucket. The whole component is
// optional: callers hold a nil *Archive when no bucket is configured and
// fall back to the transient media reference.
type Archive struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// New opens a GCS-backed archive for the given bucket.
func New(ctx context.Context, bucket string, logger *slog.Logger) (*Archive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Archive{
		client: client,
		bucket: bucket,
		logger: logger.With("component", "storage"),
	}, nil
}

// Upload writes an object and returns its stable gs:// reference.
func (a *Archive) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, key), nil
}

// Close releases the storage client.
func (a *Archive) Close() error {
	return a.client.Close()
}
