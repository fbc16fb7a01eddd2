package api

import (
	"net/http"
	"strconv"
	"time"

	"dgsync/internal/port/inbound"
)

// HealthHandler serves GET /health.
type HealthHandler struct {
	healthService inbound.HealthService
	errorHandler  ErrorHandler
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(healthService inbound.HealthService, errorHandler ErrorHandler) *HealthHandler {
	return &HealthHandler{healthService: healthService, errorHandler: errorHandler}
}

// GetHealth writes the dependency report. An unhealthy report is served
// with 503 so load balancers drop the instance.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	report, err := h.healthService.GetHealth(r.Context())
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	elapsed := float64(time.Since(started).Microseconds()) / 1000
	w.Header().Set("X-Health-Check-Duration", strconv.FormatFloat(elapsed, 'f', 2, 64)+"ms")
	_ = WriteJSON(w, report.HTTPStatus(), report)
}
