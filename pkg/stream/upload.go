package stream

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/streamfs/pkg/bufpool"
	"github.com/marmos91/streamfs/pkg/source"
)

// Receiver streams an upload body into a store chunk by chunk. The body is
// never buffered whole: each chunk is read into a pooled buffer, written at
// the current offset, and the buffer reused. Writers to the same key must
// not run concurrently; that is the store contract, not enforced here.
type Receiver struct {
	// ChunkSize is the upload chunk size. Zero selects DefaultChunkSize.
	ChunkSize int
}

// Receive copies body into the store under key and finalizes the resource.
// It returns the number of bytes durably received. A context cancellation
// mid-upload surfaces as ErrSessionCancelled with the byte count reached.
func (rc *Receiver) Receive(ctx context.Context, store source.Store, key string, body io.Reader) (int64, error) {
	chunkSize := rc.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	buf := bufpool.Get(chunkSize)
	defer bufpool.Put(buf)

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return offset, fmt.Errorf("%w: %v", ErrSessionCancelled, err)
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			wn, werr := store.WriteAt(ctx, key, buf[:n], offset)
			offset += int64(wn)
			if werr != nil {
				return offset, &WriteError{Offset: offset, Err: werr}
			}
			if wn < n {
				return offset, &WriteError{Offset: offset, Err: io.ErrShortWrite}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return offset, fmt.Errorf("%w: %v", ErrSessionCancelled, rerr)
			}
			return offset, &ReadError{Offset: offset, Err: rerr}
		}
	}

	if err := source.Finalize(ctx, store, key); err != nil {
		return offset, fmt.Errorf("failed to finalize upload: %w", err)
	}
	return offset, nil
}
