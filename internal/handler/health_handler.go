package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks database liveness
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BrokerChecker checks message broker liveness
type BrokerChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db     Pinger
	broker BrokerChecker
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(db Pinger, broker BrokerChecker) *HealthHandler {
	return &HealthHandler{
		db:     db,
		broker: broker,
	}
}

// HealthStatus is the health check response body
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HandleHealth handles GET requests to the /health endpoint
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status: "healthy",
		Checks: map[string]string{
			"database": "ok",
			"broker":   "ok",
		},
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.Status = "unhealthy"
		status.Checks["database"] = err.Error()
	}
	if h.broker != nil && !h.broker.IsConnected() {
		// Degraded, not down: sends queue up again once the broker returns
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
		status.Checks["broker"] = "disconnected"
	}

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}
