package crawler

import (
	"context"
	"io"
	"time"
)

// BlobStore writes binary assets and returns a public URL for them.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	DeleteObject(ctx context.Context, path string) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time and pauses the pipeline (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces reference-entity IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
