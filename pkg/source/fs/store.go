// Package fs provides a filesystem-backed resource store.
// Each resource is stored as a regular file under a base directory, with the
// resource key as the relative path.
package fs

import (
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/streamfs/pkg/source"
)

// Store is a filesystem-backed implementation of source.Store.
type Store struct {
	mu       sync.RWMutex
	basePath string
	fileMode os.FileMode
	closed   bool
}

// Config holds configuration for the filesystem store.
type Config struct {
	// BasePath is the root directory for resource storage.
	// Resource keys are stored as paths relative to this directory.
	BasePath string

	// CreateDir creates the base directory if it doesn't exist.
	// Default: true
	CreateDir bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0755,
		FileMode:  0644,
	}
}

// New creates a new filesystem store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}

	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	return &Store{
		basePath: cfg.BasePath,
		fileMode: cfg.FileMode,
	}, nil
}

// NewWithPath creates a new filesystem store with default configuration.
func NewWithPath(basePath string) (*Store, error) {
	return New(DefaultConfig(basePath))
}

// resourcePath maps a resource key to a filesystem path under the base
// directory. Keys use forward slashes as separators. Keys that are empty or
// would escape the base directory are rejected.
func (s *Store) resourcePath(key string) (string, error) {
	if key == "" {
		return "", source.ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", source.ErrInvalidKey
		}
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned == "." {
		return "", source.ErrInvalidKey
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}

// Stat resolves resource metadata from the file on disk.
// The content type is derived from the key's extension.
func (s *Store) Stat(ctx context.Context, key string) (source.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return source.Resource{}, source.ErrStoreClosed
	}

	p, err := s.resourcePath(key)
	if err != nil {
		return source.Resource{}, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return source.Resource{}, source.ErrNotFound
		}
		return source.Resource{}, err
	}
	if info.IsDir() {
		return source.Resource{}, source.ErrNotFound
	}

	return source.Resource{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentTypeForKey(key),
		ModTime:     info.ModTime(),
	}, nil
}

// ReadAt reads up to len(p) bytes at the given offset.
// Reads past end-of-file return the available bytes with a nil error.
func (s *Store) ReadAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, source.ErrStoreClosed
	}

	fp, err := s.resourcePath(key)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, source.ErrNotFound
		}
		return 0, err
	}
	defer f.Close()

	n, err := f.ReadAt(p, off)
	if err == io.EOF {
		// Short read signals end-of-stream to the caller.
		err = nil
	}
	return n, err
}

// WriteAt writes p at the given offset, creating the file and any parent
// directories as needed. Sparse regions read back as zeros.
func (s *Store) WriteAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, source.ErrStoreClosed
	}

	fp, err := s.resourcePath(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY, s.fileMode)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return f.WriteAt(p, off)
}

// Remove deletes a resource file. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return source.ErrStoreClosed
	}

	fp, err := s.resourcePath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fp); err != nil {
		if os.IsNotExist(err) {
			return source.ErrNotFound
		}
		return err
	}

	s.cleanEmptyDirs(filepath.Dir(fp))
	return nil
}

// cleanEmptyDirs removes empty directories up to the base path.
func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		if err := os.Remove(dir); err != nil {
			// Directory not empty or other error, stop
			break
		}
		dir = filepath.Dir(dir)
	}
}

// HealthCheck verifies the base path is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return source.ErrStoreClosed
	}

	_, err := os.Stat(s.basePath)
	return err
}

// Backend returns "fs".
func (s *Store) Backend() string {
	return "fs"
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// BasePath returns the base path of the store (for testing).
func (s *Store) BasePath() string {
	return s.basePath
}

// contentTypeForKey derives a MIME type from the key's extension,
// defaulting to application/octet-stream.
func contentTypeForKey(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Ensure Store implements source.Store.
var _ source.Store = (*Store)(nil)
