package logger

// Standard field keys for structured logging. Use these consistently across
// log statements so streams of one transfer can be correlated and queried.
const (
	KeyRequestID = "request_id" // HTTP request identifier
	KeyResource  = "resource"   // resource key being served or written
	KeyClientIP  = "client_ip"  // client IP address
	KeyStatus    = "status"     // HTTP status code

	KeyOffset        = "offset"         // byte offset within a resource
	KeyRangeStart    = "range_start"    // first byte of a resolved range
	KeyRangeEnd      = "range_end"      // last byte of a resolved range
	KeyChunkSeq      = "chunk_seq"      // sequence index of a chunk
	KeyBytesStreamed = "bytes_streamed" // bytes delivered to the client
	KeyBytesWritten  = "bytes_written"  // bytes persisted by an upload
	KeySessionState  = "session_state"  // stream session state at log time
	KeyBackend       = "backend"        // storage backend: fs, memory, s3, badger
	KeyDurationMS    = "duration_ms"    // operation duration in milliseconds
)
