package api

import (
	"fmt"
	"net/http"
	"strings"
)

var validMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true, http.MethodDelete: true,
	http.MethodPatch: true, http.MethodHead: true, http.MethodOptions: true,
}

// RouteRegistry manages HTTP route registration using Go 1.22+ ServeMux patterns.
type RouteRegistry struct {
	routes   map[string]http.Handler
	patterns []string
	mux      *http.ServeMux
}

// NewRouteRegistry creates a new RouteRegistry.
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		routes: make(map[string]http.Handler),
		mux:    http.NewServeMux(),
	}
}

// Handlers groups the handlers mounted by RegisterAPIRoutes.
type Handlers struct {
	Health   *HealthHandler
	Entity   *EntityHandler
	SyncTask *SyncTaskHandler
	Lookup   *LookupHandler
}

// RegisterAPIRoutes registers every API route.
func (r *RouteRegistry) RegisterAPIRoutes(h Handlers) error {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /health", h.Health.GetHealth},
		{"POST /entities/{kind}", h.Entity.ResolveEntity},
		{"POST /entities/{kind}/batch", h.Entity.ResolveEntityBatch},
		{"POST /sync-tasks/{function}/{target}", h.SyncTask.ProposeTask},
		{"GET /sync-tasks/{function}/{target}", h.SyncTask.GetTask},
		{"POST /sync-tasks/{function}/{target}/{worker}", h.SyncTask.EndTask},
		{"POST /lookups/similar-content", h.Lookup.FindSimilarContent},
		{"DELETE /lookups/similar-content", h.Lookup.ClearSimilarContentCache},
	}
	for _, route := range routes {
		if err := r.RegisterRoute(route.pattern, route.handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", route.pattern, err)
		}
	}
	return nil
}

// RegisterRoute registers handler under a "METHOD /path" pattern.
func (r *RouteRegistry) RegisterRoute(pattern string, handler http.Handler) error {
	if err := validatePattern(pattern); err != nil {
		return err
	}
	if _, exists := r.routes[pattern]; exists {
		return fmt.Errorf("route %q is already registered", pattern)
	}
	r.mux.Handle(pattern, handler)
	r.routes[pattern] = handler
	r.patterns = append(r.patterns, pattern)
	return nil
}

// BuildServeMux returns the configured ServeMux.
func (r *RouteRegistry) BuildServeMux() *http.ServeMux {
	return r.mux
}

// HasRoute checks if a route pattern is registered.
func (r *RouteRegistry) HasRoute(pattern string) bool {
	_, exists := r.routes[pattern]
	return exists
}

// RouteCount returns the number of registered routes.
func (r *RouteRegistry) RouteCount() int {
	return len(r.routes)
}

// Patterns returns the registered patterns in registration order.
func (r *RouteRegistry) Patterns() []string {
	return append([]string(nil), r.patterns...)
}

func validatePattern(pattern string) error {
	method, path, ok := strings.Cut(strings.TrimSpace(pattern), " ")
	if !ok {
		return fmt.Errorf("invalid route pattern %q: must have format 'METHOD /path'", pattern)
	}
	if !validMethods[method] {
		return fmt.Errorf("invalid HTTP method %q in pattern %q", method, pattern)
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q in pattern %q must start with '/'", path, pattern)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("path %q in pattern %q contains double slashes", path, pattern)
	}
	if strings.Count(path, "{") != strings.Count(path, "}") {
		return fmt.Errorf("unbalanced braces in pattern %q", pattern)
	}
	return nil
}
