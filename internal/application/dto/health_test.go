package dto

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthResponse_Add(t *testing.T) {
	tests := []struct {
		name string
		deps []DependencyStatus
		want HealthStatus
		code int
	}{
		{"no dependencies", nil, HealthStatusHealthy, http.StatusOK},
		{"all up", []DependencyStatus{{Status: ProbeUp, Critical: true}, {Status: ProbeUp}}, HealthStatusHealthy, http.StatusOK},
		{"optional down", []DependencyStatus{{Status: ProbeUp, Critical: true}, {Status: ProbeDown}}, HealthStatusDegraded, http.StatusOK},
		{"critical down after optional", []DependencyStatus{{Status: ProbeDown}, {Status: ProbeDown, Critical: true}}, HealthStatusUnhealthy, http.StatusServiceUnavailable},
		{"optional down after critical", []DependencyStatus{{Status: ProbeDown, Critical: true}, {Status: ProbeDown}}, HealthStatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewHealthResponse("v1", time.Now())
			for i, dep := range tt.deps {
				resp.Add(string(rune('a'+i)), dep)
			}
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, tt.code, resp.HTTPStatus())
			assert.Len(t, resp.Dependencies, len(tt.deps))
		})
	}
}
