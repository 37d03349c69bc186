package stream

import (
	"errors"
	"fmt"
)

// Sentinel errors for streaming operations. Handlers map these onto HTTP
// status codes; everything else is an internal failure.
var (
	// ErrInvalidRange indicates a Range header that could not be parsed.
	ErrInvalidRange = errors.New("invalid range")

	// ErrUnsatisfiableRange indicates a syntactically valid range that lies
	// entirely outside the resource.
	ErrUnsatisfiableRange = errors.New("unsatisfiable range")

	// ErrSessionCancelled indicates the client went away mid-stream.
	ErrSessionCancelled = errors.New("session cancelled")

	// ErrWriteTimeout indicates a chunk write exceeded the idle write
	// deadline, i.e. the client stopped draining.
	ErrWriteTimeout = errors.New("write timeout")

	// ErrSessionState indicates an operation was attempted in a session
	// state that does not allow it.
	ErrSessionState = errors.New("invalid session state")
)

// WriteError records a failure while writing a chunk to the client,
// preserving the byte offset reached before the failure.
type WriteError struct {
	Offset int64
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed at offset %d: %v", e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ReadError records a failure while reading a chunk from the source.
type ReadError struct {
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read failed at offset %d: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
