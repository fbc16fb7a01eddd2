package api

import (
	"net/http"
	"testing"

	"dgsync/internal/adapter/inbound/api/testutil"
	"dgsync/internal/application/dto"

	"github.com/stretchr/testify/assert"
)

func TestGetHealth(t *testing.T) {
	tests := []struct {
		status dto.HealthStatus
		want   int
	}{
		{dto.HealthStatusHealthy, http.StatusOK},
		{dto.HealthStatusDegraded, http.StatusOK},
		{dto.HealthStatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			ts := newTestServer(t)
			ts.health.Response = &dto.HealthResponse{
				Status:  tt.status,
				Version: "1.2.3",
				Dependencies: map[string]dto.DependencyStatus{
					"database": {Status: dto.ProbeUp, Critical: true},
				},
			}

			rec := ts.do(testutil.CreateJSONRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Health-Check-Duration"))
			body := testutil.DecodeResponse[dto.HealthResponse](t, rec)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, "1.2.3", body.Version)
			assert.Equal(t, dto.ProbeUp, body.Dependencies["database"].Status)
		})
	}
}

func TestGetHealth_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(testutil.CreateJSONRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
