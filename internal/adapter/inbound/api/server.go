// Package api serves the HTTP interface: entity resolution, sync task
// leases, similarity lookups and health.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"dgsync/internal/adapter/inbound/api/middleware"
	"dgsync/internal/application/common/slogger"
	"dgsync/internal/config"
	"dgsync/internal/port/inbound"
)

// Server is the HTTP API server.
type Server struct {
	config        config.APIConfig
	httpServer    *http.Server
	routeRegistry *RouteRegistry
	listener      net.Listener
	isRunning     bool
	serveErr      chan error
	mu            sync.RWMutex
}

// ServerBuilder provides a fluent interface for building Server instances.
type ServerBuilder struct {
	config          config.APIConfig
	healthService   inbound.HealthService
	entityService   inbound.EntityService
	syncTaskService inbound.SyncTaskService
	lookupService   inbound.LookupService
	errorHandler    ErrorHandler
	middleware      []MiddlewareFunc
}

// NewServerBuilder creates a new ServerBuilder.
func NewServerBuilder(cfg config.APIConfig) *ServerBuilder {
	return &ServerBuilder{config: cfg}
}

// WithHealthService sets the health service.
func (b *ServerBuilder) WithHealthService(service inbound.HealthService) *ServerBuilder {
	b.healthService = service
	return b
}

// WithEntityService sets the entity service.
func (b *ServerBuilder) WithEntityService(service inbound.EntityService) *ServerBuilder {
	b.entityService = service
	return b
}

// WithSyncTaskService sets the sync task service.
func (b *ServerBuilder) WithSyncTaskService(service inbound.SyncTaskService) *ServerBuilder {
	b.syncTaskService = service
	return b
}

// WithLookupService sets the lookup service.
func (b *ServerBuilder) WithLookupService(service inbound.LookupService) *ServerBuilder {
	b.lookupService = service
	return b
}

// WithErrorHandler sets the error handler.
func (b *ServerBuilder) WithErrorHandler(handler ErrorHandler) *ServerBuilder {
	b.errorHandler = handler
	return b
}

// WithMiddleware appends middleware; earlier middleware wraps later.
func (b *ServerBuilder) WithMiddleware(mw MiddlewareFunc) *ServerBuilder {
	b.middleware = append(b.middleware, mw)
	return b
}

// WithDefaultMiddleware adds request IDs, recovery, and the CORS and access
// logging middleware the config enables.
func (b *ServerBuilder) WithDefaultMiddleware() *ServerBuilder {
	b.WithMiddleware(NewRequestIDMiddleware())
	if b.config.LoggingEnabled() {
		b.WithMiddleware(middleware.NewStructuredLoggingMiddleware(middleware.DefaultLoggingConfig()))
	}
	b.WithMiddleware(NewRecoveryMiddleware())
	if b.config.CORSEnabled() {
		b.WithMiddleware(NewCORSMiddleware(DefaultCORSConfig()))
	}
	return b
}

// Build validates the builder and creates the Server.
func (b *ServerBuilder) Build() (*Server, error) {
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("server builder validation failed: %w", err)
	}

	registry := NewRouteRegistry()
	err := registry.RegisterAPIRoutes(Handlers{
		Health:   NewHealthHandler(b.healthService, b.errorHandler),
		Entity:   NewEntityHandler(b.entityService, b.errorHandler),
		SyncTask: NewSyncTaskHandler(b.syncTaskService, b.errorHandler),
		Lookup:   NewLookupHandler(b.lookupService, b.errorHandler),
	})
	if err != nil {
		return nil, err
	}

	handler := NewMiddlewareChain(b.middleware...)(registry.BuildServeMux())
	return &Server{
		config:        b.config,
		routeRegistry: registry,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(b.config.Host, b.config.Port),
			Handler:      handler,
			ReadTimeout:  b.config.ReadTimeout,
			WriteTimeout: b.config.WriteTimeout,
		},
	}, nil
}

func (b *ServerBuilder) validate() error {
	switch {
	case b.healthService == nil:
		return errors.New("health service is required")
	case b.entityService == nil:
		return errors.New("entity service is required")
	case b.syncTaskService == nil:
		return errors.New("sync task service is required")
	case b.lookupService == nil:
		return errors.New("lookup service is required")
	case b.errorHandler == nil:
		return errors.New("error handler is required")
	}
	if b.config.Port != "" {
		if port, err := strconv.Atoi(b.config.Port); err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", b.config.Port)
		}
	}
	if b.config.ReadTimeout < 0 || b.config.WriteTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return errors.New("server is already running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.isRunning = true
	s.serveErr = make(chan error, 1)

	go func() {
		err := s.httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else if err != nil {
			slogger.ErrorNoCtx("HTTP server stopped", slogger.Field("error", err.Error()))
		}
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.serveErr <- err
	}()

	slogger.Info(ctx, "HTTP server listening", slogger.Field("address", listener.Addr().String()))
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	running := s.isRunning
	s.mu.RUnlock()
	if !running {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Errors reports the serve loop's exit; nil after a clean shutdown.
func (s *Server) Errors() <-chan error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serveErr
}

// Address returns the bound address once started, otherwise the configured one.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HasRoute checks if a route pattern is registered.
func (s *Server) HasRoute(pattern string) bool {
	return s.routeRegistry.HasRoute(pattern)
}

// RouteCount returns the number of registered routes.
func (s *Server) RouteCount() int {
	return s.routeRegistry.RouteCount()
}
