// Package service adapts application services to the inbound ports used by
// the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"dgsync/internal/application/dto"
	"dgsync/internal/port/inbound"
	"dgsync/internal/port/outbound"
)

const (
	healthCacheTTL    = 5 * time.Second
	dependencyTimeout = 2 * time.Second
)

// HealthDependency is a named dependency probe. A failing critical
// dependency makes the service unhealthy; any other failure degrades it.
type HealthDependency struct {
	Name     string
	Checker  outbound.HealthChecker
	Critical bool
}

type cacheEntry struct {
	status    dto.DependencyStatus
	timestamp time.Time
}

// HealthServiceAdapter checks dependencies concurrently and caches each
// result briefly so health polling does not hammer them.
type HealthServiceAdapter struct {
	dependencies []HealthDependency
	version      string

	cacheMutex  sync.RWMutex
	healthCache map[string]cacheEntry
}

// NewHealthServiceAdapter creates a HealthServiceAdapter.
func NewHealthServiceAdapter(version string, dependencies ...HealthDependency) inbound.HealthService {
	return &HealthServiceAdapter{
		dependencies: dependencies,
		version:      version,
		healthCache:  make(map[string]cacheEntry),
	}
}

// GetHealth probes every dependency concurrently and folds the results into
// one report.
func (h *HealthServiceAdapter) GetHealth(ctx context.Context) (*dto.HealthResponse, error) {
	statuses := make([]dto.DependencyStatus, len(h.dependencies))
	var wg sync.WaitGroup
	for i, dep := range h.dependencies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = h.check(ctx, dep)
		}()
	}
	wg.Wait()

	response := dto.NewHealthResponse(h.version, time.Now())
	for i, dep := range h.dependencies {
		response.Add(dep.Name, statuses[i])
	}
	return response, nil
}

func (h *HealthServiceAdapter) check(ctx context.Context, dep HealthDependency) dto.DependencyStatus {
	if status, ok := h.cached(dep.Name); ok {
		return status
	}

	probeCtx, cancel := context.WithTimeout(ctx, dependencyTimeout)
	defer cancel()

	started := time.Now()
	err := dep.Checker.Ping(probeCtx)
	status := dto.DependencyStatus{
		Status:    dto.ProbeUp,
		Critical:  dep.Critical,
		LatencyMS: float64(time.Since(started).Microseconds()) / 1000,
		CheckedAt: started,
	}
	if err != nil {
		status.Status = dto.ProbeDown
		status.Message = err.Error()
	}

	h.cacheMutex.Lock()
	h.healthCache[dep.Name] = cacheEntry{status: status, timestamp: started}
	h.cacheMutex.Unlock()
	return status
}

func (h *HealthServiceAdapter) cached(name string) (dto.DependencyStatus, bool) {
	h.cacheMutex.RLock()
	defer h.cacheMutex.RUnlock()
	entry, ok := h.healthCache[name]
	if !ok || time.Since(entry.timestamp) > healthCacheTTL {
		return dto.DependencyStatus{}, false
	}
	return entry.status, true
}

// ClearCache forgets cached dependency results.
func (h *HealthServiceAdapter) ClearCache() {
	h.cacheMutex.Lock()
	h.healthCache = make(map[string]cacheEntry)
	h.cacheMutex.Unlock()
}
