package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type storedObject struct {
	contentType string
	content     []byte
}

// MemoryStore keeps objects in process memory. Used by tests and by the dev
// server when no upload directory is writable.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject
	base    string
}

func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]storedObject), base: publicBase}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	s.mu.Lock()
	s.objects[key] = storedObject{contentType: contentType, content: data}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return joinURL(s.base, key)
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
