package source

import (
	"errors"
	"fmt"
)

// Standard source errors. The HTTP layer maps these to response statuses.
var (
	// ErrNotFound indicates the resource key does not resolve.
	// Surfaced as 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")

	// ErrInvalidKey indicates a resource key the backend refuses to map
	// (empty, or escaping the store root). Surfaced as 400 Bad Request.
	ErrInvalidKey = errors.New("invalid resource key")

	// ErrNonSequentialWrite indicates a WriteAt offset that skips ahead of
	// the append cursor on a backend that only supports sequential writes.
	ErrNonSequentialWrite = errors.New("non-sequential write offset")
)

// Error wraps a sentinel source error with operational context for
// diagnosing storage failures without losing errors.Is compatibility:
//
//	err := &Error{Op: "read", Key: "videos/a.mp4", Backend: "s3", Err: ErrNotFound}
//	errors.Is(err, ErrNotFound) // true
type Error struct {
	// Op is the operation that failed: "stat", "read", "write", "remove",
	// or "finalize".
	Op string

	// Key is the resource key involved.
	Key string

	// Backend identifies the store backend: "fs", "memory", "s3", "badger".
	Backend string

	// Offset is the byte offset of the failed operation, when meaningful.
	Offset int64

	// Err is the wrapped cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s %q: %s (backend=%s, offset=%d)",
		e.Op, e.Key, e.Err, e.Backend, e.Offset)
}

func (e *Error) Unwrap() error {
	return e.Err
}
