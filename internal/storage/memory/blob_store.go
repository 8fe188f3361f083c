// Package memory keeps blobs in process for development runs and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// BlobStore stores assets in-memory and returns pseudo URLs.
type BlobStore struct {
	mu   sync.RWMutex
	name string
	data map[string]Object
}

// Object is one stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// NewBlobStore creates an in-memory blob store. name becomes the URL host.
func NewBlobStore(name string) *BlobStore {
	return &BlobStore{
		name: name,
		data: make(map[string]Object),
	}
}

// PutObject persists a copy of data and returns a memory:// URL.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = Object{ContentType: contentType, Data: byteData}
	return fmt.Sprintf("memory://%s/%s", s.name, path), nil
}

// DeleteObject removes path if present.
func (s *BlobStore) DeleteObject(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, path)
	return nil
}

// Get returns the stored object.
func (s *BlobStore) Get(path string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.data[path]
	return obj, ok
}

// Paths lists stored paths in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.data))
	for p := range s.data {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
