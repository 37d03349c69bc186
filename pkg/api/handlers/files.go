package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/marmos91/streamfs/internal/logger"
	"github.com/marmos91/streamfs/pkg/metrics"
	"github.com/marmos91/streamfs/pkg/source"
	"github.com/marmos91/streamfs/pkg/stream"
)

// FilesConfig carries the streaming knobs the files handler needs.
type FilesConfig struct {
	// ChunkSize is the transfer chunk size in bytes.
	ChunkSize int

	// IdleWriteTimeout bounds a single chunk write to a stalled client.
	IdleWriteTimeout time.Duration

	// MaxBytesPerSec caps the per-session outbound byte rate. Zero means
	// unlimited.
	MaxBytesPerSec int64

	// MaxUploadSize caps a single upload body. Zero means unlimited.
	MaxUploadSize int64
}

// FilesHandler serves ranged downloads and chunked uploads of resources.
type FilesHandler struct {
	store   source.Store
	config  FilesConfig
	metrics *metrics.StreamMetrics
}

// NewFilesHandler creates a files handler over the given store.
// streamMetrics may be nil when metrics are disabled.
func NewFilesHandler(store source.Store, config FilesConfig, streamMetrics *metrics.StreamMetrics) *FilesHandler {
	return &FilesHandler{
		store:   store,
		config:  config,
		metrics: streamMetrics,
	}
}

// resourceKey extracts the resource key from the request path.
func resourceKey(r *http.Request) string {
	return strings.TrimPrefix(chi.URLParam(r, "*"), "/")
}

// Download handles GET /files/{key}: a ranged, chunked resource download.
//
// The response is 200 for a full download, 206 with Content-Range for a
// range request, 416 when the range lies outside the resource, and 400 for
// a Range header that cannot be parsed (including multi-range headers,
// which are not supported).
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := resourceKey(r)
	if key == "" {
		badRequest(w, "Missing resource key")
		return
	}

	res, err := h.store.Stat(r.Context(), key)
	if err != nil {
		h.statError(w, key, err)
		return
	}

	sess := stream.NewSession(middleware.GetReqID(r.Context()), res)

	rng, err := stream.ParseRange(r.Header.Get("Range"), res.Size)
	if err != nil {
		sess.Fail(err)
		h.rangeError(w, key, res.Size, err)
		return
	}
	if err := sess.SetRange(rng); err != nil {
		internalServerError(w, "Session setup failed")
		return
	}

	if rng.Partial {
		h.metrics.RangeRequest("partial")
	} else {
		h.metrics.RangeRequest("full")
	}

	sched := stream.NewScheduler(h.store, key, rng, h.config.ChunkSize)
	sched.OnRead = h.metrics.ObserveChunkRead
	defer sched.Close()

	responder := &stream.Responder{
		IdleTimeout: h.config.IdleWriteTimeout,
		Limiter:     h.limiter(),
	}

	h.metrics.SessionStarted()
	defer func() {
		h.metrics.SessionEnded(sess.State().String())
		h.metrics.AddBytesStreamed(h.store.Backend(), sess.BytesStreamed())
	}()

	if err := responder.Respond(r.Context(), w, sess, sched); err != nil {
		// Headers are already written: nothing to send, just record it.
		logger.Warn("download ended early",
			logger.KeyResource, key,
			logger.KeySessionState, sess.State().String(),
			logger.KeyBytesStreamed, sess.BytesStreamed(),
			"error", err,
		)
		return
	}

	logger.Debug("download completed",
		logger.KeyResource, key,
		logger.KeyRangeStart, rng.Start,
		logger.KeyRangeEnd, rng.End,
		logger.KeyBytesStreamed, sess.BytesStreamed(),
		logger.KeyDurationMS, sess.Duration().Milliseconds(),
	)
}

// Head handles HEAD /files/{key}: download headers without a body.
func (h *FilesHandler) Head(w http.ResponseWriter, r *http.Request) {
	key := resourceKey(r)
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res, err := h.store.Stat(r.Context(), key)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	rng, err := stream.ParseRange(r.Header.Get("Range"), res.Size)
	if err != nil {
		switch {
		case errors.Is(err, stream.ErrUnsatisfiableRange):
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", res.Size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
		return
	}

	hdr := w.Header()
	hdr.Set("Accept-Ranges", "bytes")
	hdr.Set("Content-Type", res.ContentType)
	length := rng.Length()
	if length < 0 {
		length = 0
	}
	hdr.Set("Content-Length", strconv.FormatInt(length, 10))
	if !res.ModTime.IsZero() {
		hdr.Set("Last-Modified", res.ModTime.UTC().Format(http.TimeFormat))
	}
	if rng.Partial {
		hdr.Set("Content-Range", rng.ContentRange())
		w.WriteHeader(http.StatusPartialContent)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Upload handles POST /files/{key}: a chunked upload streamed straight into
// the store without buffering the whole body.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	key := resourceKey(r)
	if key == "" {
		badRequest(w, "Missing resource key")
		return
	}

	body := r.Body
	if h.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	receiver := &stream.Receiver{ChunkSize: h.config.ChunkSize}
	n, err := receiver.Receive(r.Context(), h.store, key, body)
	h.metrics.AddBytesReceived(n)

	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			writeJSON(w, http.StatusRequestEntityTooLarge,
				errorResponse(fmt.Sprintf("Upload exceeds limit of %d bytes", maxBytesErr.Limit)))
		case errors.Is(err, stream.ErrSessionCancelled):
			// Client went away; log for the record, response is moot.
			logger.Debug("upload cancelled by client",
				logger.KeyResource, key,
				logger.KeyBytesWritten, n,
			)
		case errors.Is(err, source.ErrInvalidKey):
			badRequest(w, "Invalid resource key")
		default:
			logger.Error("upload failed",
				logger.KeyResource, key,
				logger.KeyBytesWritten, n,
				"error", err,
			)
			// The partial byte count tells the client where the write
			// stopped.
			internalServerError(w, fmt.Sprintf("Upload failed after %d bytes", n))
		}
		return
	}

	logger.Info("upload completed",
		logger.KeyResource, key,
		logger.KeyBytesWritten, n,
		logger.KeyBackend, h.store.Backend(),
	)

	writeJSON(w, http.StatusOK, okResponse(map[string]interface{}{
		"key":           key,
		"bytes_written": n,
	}))
}

// Delete handles DELETE /files/{key}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := resourceKey(r)
	if key == "" {
		badRequest(w, "Missing resource key")
		return
	}

	if err := h.store.Remove(r.Context(), key); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			notFound(w, "Resource not found")
			return
		}
		internalServerError(w, "Failed to remove resource")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// statError maps a Stat failure onto an HTTP error response.
func (h *FilesHandler) statError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, source.ErrNotFound):
		notFound(w, "Resource not found")
	case errors.Is(err, source.ErrInvalidKey):
		badRequest(w, "Invalid resource key")
	default:
		logger.Error("resource lookup failed", logger.KeyResource, key, "error", err)
		internalServerError(w, "Resource lookup failed")
	}
}

// rangeError maps a range resolution failure onto an HTTP error response.
// An unsatisfiable range carries the required Content-Range: bytes */size.
func (h *FilesHandler) rangeError(w http.ResponseWriter, key string, size int64, err error) {
	switch {
	case errors.Is(err, stream.ErrUnsatisfiableRange):
		h.metrics.RangeRequest("unsatisfiable")
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeJSON(w, http.StatusRequestedRangeNotSatisfiable, errorResponse("Requested range not satisfiable"))
	default:
		h.metrics.RangeRequest("invalid")
		badRequest(w, "Invalid Range header")
	}
	logger.Debug("range rejected", logger.KeyResource, key, "error", err)
}

// limiter builds a per-session rate limiter, or nil when unlimited.
func (h *FilesHandler) limiter() *rate.Limiter {
	bps := h.config.MaxBytesPerSec
	if bps <= 0 {
		return nil
	}

	// Burst must cover a full chunk or WaitN can never succeed.
	burst := int(bps)
	if h.config.ChunkSize > burst {
		burst = h.config.ChunkSize
	}
	return rate.NewLimiter(rate.Limit(bps), burst)
}
