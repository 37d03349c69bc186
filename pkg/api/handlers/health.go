package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/streamfs/pkg/source"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is the storage backend reachable?
type HealthHandler struct {
	store source.Store
}

// NewHealthHandler creates a new health handler.
//
// The store parameter may be nil, in which case the readiness check will
// return unhealthy status.
func NewHealthHandler(store source.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for Kubernetes liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "streamfs",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK if the storage backend answers its health check within a
// short timeout; 503 Service Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("storage not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.HealthCheck(ctx)
	latency := time.Since(start)

	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"backend": h.store.Backend(),
		"latency": latency.String(),
	}))
}
