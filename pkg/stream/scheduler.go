package stream

import (
	"context"
	"time"

	"github.com/marmos91/streamfs/pkg/bufpool"
	"github.com/marmos91/streamfs/pkg/source"
)

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 64 * 1024

// Chunk is one piece of a resource, produced lazily by a Scheduler. Data is
// only valid until the next call to Next or Close: the scheduler reuses a
// single pooled buffer, which is what keeps at most one chunk's worth of
// data in flight per session.
type Chunk struct {
	// Seq is the zero-based position of the chunk in the sequence.
	Seq int

	// Offset is the absolute byte offset of the chunk within the resource.
	Offset int64

	// Data holds the chunk payload.
	Data []byte
}

// Scheduler turns a resolved range into a lazy sequence of chunks. Chunks
// are read one at a time, on demand: no read is issued until the consumer
// asks for the next chunk, so a slow consumer naturally throttles reads
// from the source.
//
// A Scheduler belongs to a single session and is not safe for concurrent
// use.
type Scheduler struct {
	store     source.Store
	key       string
	rng       ResolvedRange
	chunkSize int

	// OnRead, when set, is called with the duration of every source read.
	OnRead func(time.Duration)

	cursor int64
	seq    int
	buf    []byte
	done   bool
}

// NewScheduler creates a chunk scheduler over the given range of a resource.
// chunkSize <= 0 selects DefaultChunkSize.
func NewScheduler(store source.Store, key string, rng ResolvedRange, chunkSize int) *Scheduler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Scheduler{
		store:     store,
		key:       key,
		rng:       rng,
		chunkSize: chunkSize,
		cursor:    rng.Start,
	}
}

// Next reads and returns the next chunk of the range. The second return
// value is false when the sequence is exhausted. A short read from the
// source ends the sequence early rather than erroring: the source shrank
// underneath the session and there is nothing more to send.
//
// The returned chunk's Data is reused on the next call.
func (s *Scheduler) Next(ctx context.Context) (Chunk, bool, error) {
	if s.done || s.cursor > s.rng.End {
		return Chunk{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return Chunk{}, false, err
	}

	want := int64(s.chunkSize)
	if remaining := s.rng.End - s.cursor + 1; remaining < want {
		want = remaining
	}

	if s.buf == nil {
		s.buf = bufpool.Get(s.chunkSize)
	}

	start := time.Now()
	n, err := s.store.ReadAt(ctx, s.key, s.buf[:want], s.cursor)
	if s.OnRead != nil {
		s.OnRead(time.Since(start))
	}
	if err != nil {
		s.done = true
		return Chunk{}, false, &ReadError{Offset: s.cursor, Err: err}
	}
	if n == 0 {
		s.done = true
		return Chunk{}, false, nil
	}

	chunk := Chunk{
		Seq:    s.seq,
		Offset: s.cursor,
		Data:   s.buf[:n],
	}
	s.cursor += int64(n)
	s.seq++
	if int64(n) < want {
		s.done = true
	}
	return chunk, true, nil
}

// Remaining returns the number of bytes of the range not yet produced.
func (s *Scheduler) Remaining() int64 {
	if s.done || s.cursor > s.rng.End {
		return 0
	}
	return s.rng.End - s.cursor + 1
}

// Close releases the scheduler's pooled buffer. The scheduler must not be
// used after Close.
func (s *Scheduler) Close() {
	if s.buf != nil {
		bufpool.Put(s.buf)
		s.buf = nil
	}
	s.done = true
}
