package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// Pinger is implemented by every key-value backend
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse reports service and backend health
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Store   string `json:"store"`
}

// HealthHandler reports whether the persistence backend is reachable
type HealthHandler struct {
	store   Pinger
	backend string
	logger  *slog.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store Pinger, backend string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, backend: backend, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("backend", h.backend), slog.Any("error", err))
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:  "unhealthy",
			Backend: h.backend,
			Store:   "down",
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Backend: h.backend,
		Store:   "up",
	})
}
