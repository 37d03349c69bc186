// Package memory provides an in-memory resource store, used by tests and for
// ephemeral serving where durability is not needed.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/streamfs/pkg/source"
)

// entry holds one resource's bytes and metadata.
type entry struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// Store is an in-memory implementation of source.Store.
// Resources grow on write; sparse regions read back as zeros.
type Store struct {
	mu        sync.RWMutex
	resources map[string]*entry
	closed    bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		resources: make(map[string]*entry),
	}
}

// Put seeds a complete resource. Intended for tests and fixtures.
func (s *Store) Put(key string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s.resources[key] = &entry{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modTime:     time.Now().UTC(),
	}
}

// Stat resolves resource metadata.
func (s *Store) Stat(ctx context.Context, key string) (source.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return source.Resource{}, source.ErrStoreClosed
	}

	e, ok := s.resources[key]
	if !ok {
		return source.Resource{}, source.ErrNotFound
	}

	return source.Resource{
		Key:         key,
		Size:        int64(len(e.data)),
		ContentType: e.contentType,
		ModTime:     e.modTime,
	}, nil
}

// ReadAt reads up to len(p) bytes at the given offset.
// Reads past the end return the available bytes with a nil error.
func (s *Store) ReadAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, source.ErrStoreClosed
	}

	e, ok := s.resources[key]
	if !ok {
		return 0, source.ErrNotFound
	}

	if off >= int64(len(e.data)) {
		return 0, nil
	}

	return copy(p, e.data[off:]), nil
}

// WriteAt writes p at the given offset, growing the resource as needed.
func (s *Store) WriteAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, source.ErrStoreClosed
	}
	if key == "" {
		return 0, source.ErrInvalidKey
	}

	e, ok := s.resources[key]
	if !ok {
		e = &entry{contentType: "application/octet-stream"}
		s.resources[key] = e
	}

	end := off + int64(len(p))
	if end > int64(len(e.data)) {
		grown := make([]byte, end)
		copy(grown, e.data)
		e.data = grown
	}

	copy(e.data[off:end], p)
	e.modTime = time.Now().UTC()
	return len(p), nil
}

// Remove deletes a resource.
// Returns source.ErrNotFound if the key doesn't exist.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return source.ErrStoreClosed
	}

	if _, ok := s.resources[key]; !ok {
		return source.ErrNotFound
	}
	delete(s.resources, key)
	return nil
}

// HealthCheck reports whether the store is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return source.ErrStoreClosed
	}
	return nil
}

// Backend returns "memory".
func (s *Store) Backend() string {
	return "memory"
}

// Close marks the store as closed and drops all resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.resources = nil
	return nil
}

// Ensure Store implements source.Store.
var _ source.Store = (*Store)(nil)
