package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/streamfs/internal/logger"
	"github.com/marmos91/streamfs/pkg/api/handlers"
	"github.com/marmos91/streamfs/pkg/metrics"
	"github.com/marmos91/streamfs/pkg/source"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//
// Note that no request timeout middleware wraps the /files routes: a
// download runs for as long as the client drains it. Health routes get a
// short timeout since they should answer immediately.
func NewRouter(cfg Config, store source.Store, streamMetrics *metrics.StreamMetrics) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	filesHandler := handlers.NewFilesHandler(store, handlers.FilesConfig{
		ChunkSize:        cfg.ChunkSize.Int(),
		IdleWriteTimeout: cfg.IdleWriteTimeout,
		MaxBytesPerSec:   cfg.MaxBytesPerSec.Int64(),
		MaxUploadSize:    cfg.MaxUploadSize.Int64(),
	}, streamMetrics)

	r.Route("/files", func(r chi.Router) {
		r.Get("/*", filesHandler.Download)
		r.Head("/*", filesHandler.Head)
		r.Post("/*", filesHandler.Upload)
		r.Delete("/*", filesHandler.Delete)
	})

	healthHandler := handlers.NewHealthHandler(store)

	r.Route("/health", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal
// logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, bytes, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyClientIP, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyBytesWritten, ww.BytesWritten(),
			logger.KeyDurationMS, logger.Duration(start),
		)
	})
}
