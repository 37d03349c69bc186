package stream

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/marmos91/streamfs/internal/logger"
)

// Responder writes a session's chunk sequence to an HTTP response with
// transport-level backpressure: it pulls one chunk at a time from the
// scheduler and blocks inside the ResponseWriter until the client drains the
// previous one. Nothing beyond the in-flight chunk is ever buffered.
type Responder struct {
	// IdleTimeout bounds how long a single chunk write may block on a
	// non-draining client. Zero disables the per-chunk deadline.
	IdleTimeout time.Duration

	// Limiter optionally caps the outbound byte rate. The limiter's burst
	// must be at least the configured chunk size.
	Limiter *rate.Limiter
}

// Respond streams the scheduler's chunks to w for the given session. Headers
// are written first (200 for a full response, 206 with Content-Range for a
// partial one), then chunks one at a time, flushing after each.
//
// The session ends in StateCompleted, StateCancelled (client went away or
// stopped draining) or StateFailed (source read error). Once headers are
// written no error response is possible, so any failure simply truncates the
// body and is reported through the session.
func (rp *Responder) Respond(ctx context.Context, w http.ResponseWriter, sess *Session, sched *Scheduler) error {
	rng := sess.Range()

	writeHeaders(w, sess, rng)

	if rng.Length() <= 0 {
		// Empty resource: headers only.
		return sess.Complete()
	}

	rc := http.NewResponseController(w)

	for {
		select {
		case <-ctx.Done():
			sess.Cancel()
			return ErrSessionCancelled
		default:
		}

		chunk, ok, err := sched.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				sess.Cancel()
				return ErrSessionCancelled
			}
			sess.Fail(err)
			return err
		}
		if !ok {
			return sess.Complete()
		}

		if err := sess.StartStreaming(); err != nil {
			sess.Fail(err)
			return err
		}

		if rp.Limiter != nil {
			if err := rp.Limiter.WaitN(ctx, len(chunk.Data)); err != nil {
				sess.Cancel()
				return ErrSessionCancelled
			}
		}

		if rp.IdleTimeout > 0 {
			// Deadline is per chunk: a draining client keeps resetting it,
			// a stalled one trips it.
			if err := rc.SetWriteDeadline(time.Now().Add(rp.IdleTimeout)); err != nil {
				logger.Debug("write deadline unsupported by transport", "error", err)
			}
		}

		n, err := w.Write(chunk.Data)
		sess.Advance(int64(n))
		if err != nil {
			return rp.writeFailed(sess, chunk.Offset+int64(n), err)
		}

		// Push the chunk to the transport before pulling the next one.
		if err := rc.Flush(); err != nil {
			return rp.writeFailed(sess, chunk.Offset+int64(n), err)
		}
	}
}

// writeFailed classifies a chunk write failure. Either way the session is
// cancelled, not failed: a client that disconnects or stops draining is not
// a server fault. A tripped deadline is reported as ErrWriteTimeout so
// callers can tell the two apart in logs.
func (rp *Responder) writeFailed(sess *Session, offset int64, err error) error {
	sess.Cancel()

	if isTimeout(err) {
		werr := &WriteError{Offset: offset, Err: ErrWriteTimeout}
		logger.Warn("client too slow to drain, stream cancelled",
			logger.KeyResource, sess.Resource.Key,
			logger.KeyOffset, offset)
		return werr
	}

	logger.Debug("client disconnected mid-stream",
		logger.KeyResource, sess.Resource.Key,
		logger.KeyOffset, offset,
		"error", err)
	return ErrSessionCancelled
}

// isTimeout reports whether err is a write-deadline expiry.
func isTimeout(err error) bool {
	var nerr interface{ Timeout() bool }
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// writeHeaders emits the response status line and headers for a session.
func writeHeaders(w http.ResponseWriter, sess *Session, rng ResolvedRange) {
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", sess.Resource.ContentType)

	length := rng.Length()
	if length < 0 {
		length = 0
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))

	if !sess.Resource.ModTime.IsZero() {
		h.Set("Last-Modified", sess.Resource.ModTime.UTC().Format(http.TimeFormat))
	}

	if rng.Partial {
		h.Set("Content-Range", rng.ContentRange())
		w.WriteHeader(http.StatusPartialContent)
		return
	}
	w.WriteHeader(http.StatusOK)
}
