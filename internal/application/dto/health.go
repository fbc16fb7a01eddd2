package dto

import (
	"net/http"
	"time"
)

// HealthStatus is the overall service status.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ProbeResult is the outcome of a single dependency probe.
type ProbeResult string

const (
	ProbeUp   ProbeResult = "up"
	ProbeDown ProbeResult = "down"
)

// DependencyStatus is one probed dependency in a health report.
type DependencyStatus struct {
	Status    ProbeResult `json:"status"`
	Critical  bool        `json:"critical"`
	LatencyMS float64     `json:"latency_ms"`
	CheckedAt time.Time   `json:"checked_at"`
	Message   string      `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       HealthStatus                `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// NewHealthResponse starts a healthy report.
func NewHealthResponse(version string, now time.Time) *HealthResponse {
	return &HealthResponse{
		Status:       HealthStatusHealthy,
		Timestamp:    now,
		Version:      version,
		Dependencies: make(map[string]DependencyStatus),
	}
}

// Add records a dependency and lowers the overall status when it is down.
// A down critical dependency makes the report unhealthy, any other one
// degrades it.
func (r *HealthResponse) Add(name string, dep DependencyStatus) {
	if r.Dependencies == nil {
		r.Dependencies = make(map[string]DependencyStatus)
	}
	r.Dependencies[name] = dep
	if dep.Status == ProbeUp {
		return
	}
	switch {
	case dep.Critical:
		r.Status = HealthStatusUnhealthy
	case r.Status == HealthStatusHealthy:
		r.Status = HealthStatusDegraded
	}
}

// HTTPStatus maps the report to a response code. Degraded still serves.
func (r *HealthResponse) HTTPStatus() int {
	if r.Status == HealthStatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
