// Package source defines the byte-addressable resource abstraction that
// streaming sessions read from and uploads write to.
//
// A Store hides the storage backend (local filesystem, memory, S3, Badger)
// behind random-access reads and writes, so the range parsing, chunk
// scheduling, and HTTP layers never touch backend APIs directly. Stores are
// instantiated once at process start and passed explicitly to each session.
//
// Read Semantics:
// ReadAt deviates from io.ReaderAt on purpose: a read past the end of a
// resource returns the bytes that were available (possibly zero) with a nil
// error. A short read is the end-of-stream signal for the chunk scheduler; an
// error always means the underlying resource failed.
//
// Write Semantics:
// Writes are single-writer per key. Concurrent writers to the same key are a
// documented precondition violation and are not detected. Backends that
// cannot write in place (S3) additionally require strictly sequential offsets
// and implement Finalizer to commit the result.
package source

import (
	"context"
	"time"
)

// Resource describes a stored resource's metadata. It is resolved once per
// request and treated as immutable for the lifetime of the stream; a length
// change mid-stream surfaces as a read error, never as silent truncation.
type Resource struct {
	// Key is the stable identifier of the resource within its store.
	Key string

	// Size is the total length in bytes.
	Size int64

	// ContentType is the MIME type served with the resource.
	ContentType string

	// ModTime is the last modification timestamp.
	ModTime time.Time
}

// Store provides random-access reads and writes on keyed resources.
//
// Implementations must be safe for concurrent use. Concurrent reads on the
// same key are always safe; each reader owns its own cursor.
type Store interface {
	// Stat resolves resource metadata for a key.
	// Returns ErrNotFound if the key does not resolve.
	Stat(ctx context.Context, key string) (Resource, error)

	// ReadAt reads up to len(p) bytes at the given offset.
	// A read past end-of-resource returns a short read with a nil error; see
	// the package documentation. Errors are fatal for the reading session.
	ReadAt(ctx context.Context, key string, p []byte, off int64) (int, error)

	// WriteAt writes p at the given offset, extending the resource as needed.
	// Returns the number of bytes written.
	WriteAt(ctx context.Context, key string, p []byte, off int64) (int, error)

	// Remove deletes a resource.
	// Returns ErrNotFound if the key does not resolve, except on backends
	// whose delete primitive cannot report it (S3).
	Remove(ctx context.Context, key string) error

	// HealthCheck verifies the store is accessible and operational.
	HealthCheck(ctx context.Context) error

	// Backend returns the backend name for logging and metrics:
	// "fs", "memory", "s3", or "badger".
	Backend() string

	// Close releases backend resources. The store is unusable afterwards.
	Close() error
}

// Finalizer is implemented by stores that need an explicit commit after a
// sequence of WriteAt calls (e.g. completing an S3 multipart upload).
// Stores with in-place writes do not implement it.
type Finalizer interface {
	// Finalize commits all writes to key. After Finalize the resource is
	// visible to readers in full.
	Finalize(ctx context.Context, key string) error
}

// Finalize commits pending writes on stores that require it and is a no-op
// for everything else.
func Finalize(ctx context.Context, s Store, key string) error {
	if f, ok := s.(Finalizer); ok {
		return f.Finalize(ctx, key)
	}
	return nil
}
