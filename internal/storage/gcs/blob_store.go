// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// DefaultPublicBaseURL serves objects from publicly readable buckets.
const DefaultPublicBaseURL = "https://storage.googleapis.com"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// PublicBaseURL prefixes returned object URLs. Empty uses DefaultPublicBaseURL.
	PublicBaseURL string
}

// BlobStore writes assets to a configured GCS bucket.
type BlobStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultPublicBaseURL
	}
	return &BlobStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

// PutObject uploads data to the bucket and returns its public URL.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, path), nil
}

// DeleteObject removes path. A missing object is not an error.
func (s *BlobStore) DeleteObject(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", path, err)
	}
	return nil
}
