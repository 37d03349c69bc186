package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/streamfs/internal/logger"
	"github.com/marmos91/streamfs/pkg/metrics"
	"github.com/marmos91/streamfs/pkg/source"
)

// Server provides the streaming HTTP server.
//
// Endpoints:
//   - GET/HEAD /files/{key}: ranged resource downloads
//   - POST /files/{key}: chunked resource uploads
//   - DELETE /files/{key}: resource removal
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new streaming HTTP server over the given store.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// Defaults are applied here to ensure the server works correctly even when
// created directly (e.g., in tests). This is idempotent with the defaults
// applied during config loading.
func NewServer(config Config, store source.Store, streamMetrics *metrics.StreamMetrics) *Server {
	config.applyDefaults()

	router := NewRouter(config, store, streamMetrics)

	// WriteTimeout stays zero on purpose: a fixed budget would abort every
	// download larger than the client can pull within it. Stalled clients
	// are cut off by the per-chunk write deadline instead.
	server := &http.Server{
		Addr:              net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Handler:           router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled or
// an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil on success.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("streaming server listening",
			"addr", s.server.Addr,
			"chunk_size", s.config.ChunkSize.String(),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("streaming server shutdown signal received")
		// Don't use the cancelled ctx: it would abort in-flight transfers
		// immediately instead of draining them.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("streaming server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("streaming server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("streaming server shutdown error: %w", err)
			logger.Error("streaming server shutdown error", "error", err)
		} else {
			logger.Info("streaming server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
