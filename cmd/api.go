package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dgsync/internal/adapter/inbound/api"
	"dgsync/internal/adapter/inbound/messaging"
	inboundservice "dgsync/internal/adapter/inbound/service"
	"dgsync/internal/application/common/slogger"
	"dgsync/internal/config"
	"dgsync/internal/version"

	"github.com/spf13/cobra"
)

const (
	serverStartTimeout    = 10 * time.Second
	serverShutdownTimeout = 30 * time.Second
)

var invalidationKinds = []string{"Content", "ContentEmbedding"}

func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Start the API server",
		Long: `Start the HTTP API server.

The server provides endpoints for:
- Entity resolution, single and batch
- Sync task leases
- Similar content lookup
- Health checks

Configuration is loaded from config files and DGSYNC_* environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runAPIServer(cmd.Context(), cfg)
		},
	}
}

// CreateServer builds the API server over services.
func (sf *ServiceFactory) CreateServer(services *Services) (*api.Server, error) {
	return api.NewServerBuilder(sf.config.API).
		WithHealthService(inboundservice.NewHealthServiceAdapter(version.Get().Version, services.Health...)).
		WithEntityService(inboundservice.NewEntityServiceAdapter(services.Resolver)).
		WithSyncTaskService(inboundservice.NewSyncTaskServiceAdapter(services.Leases)).
		WithLookupService(inboundservice.NewLookupServiceAdapter(services.SimilarContent)).
		WithErrorHandler(api.NewDefaultErrorHandler()).
		WithDefaultMiddleware().
		Build()
}

func runAPIServer(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	factory := NewServiceFactory(cfg)
	defer factory.Close()

	services, err := factory.CreateServices(ctx, "")
	if err != nil {
		return err
	}
	server, err := factory.CreateServer(services)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.NATS.Enabled {
		consumer, err := messaging.NewInvalidationConsumer(cfg.NATS, messaging.InvalidationConfig{
			Kinds:    invalidationKinds,
			Function: cfg.Worker.Function,
		}, services.SimilarContent)
		if err != nil {
			return err
		}
		if err := consumer.Start(ctx); err != nil {
			slogger.Warn(ctx, "Cache invalidation disabled", slogger.Field("error", err.Error()))
		} else {
			defer consumer.Stop()
		}
	}

	startCtx, startCancel := context.WithTimeout(ctx, serverStartTimeout)
	defer startCancel()
	if err := server.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	slogger.Info(ctx, "API server started", slogger.Fields3(
		"address", server.Address(),
		"database", cfg.Database.Driver,
		"routes", server.RouteCount(),
	))

	return gracefulShutdown(ctx, server)
}

// gracefulShutdown blocks until a signal, a server error or ctx cancellation,
// then drains the server.
func gracefulShutdown(ctx context.Context, server *api.Server) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		slogger.Info(ctx, "Received signal, shutting down", slogger.Field("signal", sig.String()))
	case err := <-server.Errors():
		if err != nil {
			runErr = err
			slogger.Error(ctx, "API server failed", slogger.Field("error", err.Error()))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("error during server shutdown: %w", err))
	}

	slogger.InfoNoCtx("API server shut down gracefully", nil)
	return runErr
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.AddCommand(newAPICmd())
}
