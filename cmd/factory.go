package cmd

import (
	"context"
	"fmt"

	inboundservice "dgsync/internal/adapter/inbound/service"
	"dgsync/internal/adapter/outbound/embeddings/openai"
	"dgsync/internal/adapter/outbound/embeddings/simple"
	"dgsync/internal/adapter/outbound/messaging"
	"dgsync/internal/adapter/outbound/rediscache"
	"dgsync/internal/adapter/outbound/repository"
	"dgsync/internal/adapter/outbound/sqlite"
	"dgsync/internal/application/common/slogger"
	"dgsync/internal/application/service"
	"dgsync/internal/config"
	"dgsync/internal/domain/entity"
	"dgsync/internal/port/outbound"
	"dgsync/internal/version"
)

// contentStore serves similarity matches and the embedding backlog.
type contentStore interface {
	outbound.ContentMatcher
	outbound.EmbeddingBacklog
}

// Storage is the set of store adapters for the configured driver.
type Storage struct {
	entities outbound.EntityStore
	leases   outbound.LeaseStore
	content  contentStore
	health   outbound.HealthChecker
	migrate  func(ctx context.Context) error
}

// Services are the application services shared by the commands.
type Services struct {
	Resolver       *service.EntityResolver
	Leases         *service.LeaseCoordinator
	SimilarContent *service.SimilarContentService
	EmbeddingSync  *service.EmbeddingSync
	Health         []inboundservice.HealthDependency
}

// ServiceFactory builds adapters and services from the configuration and
// closes everything it opened.
type ServiceFactory struct {
	config  *config.Config
	catalog *entity.Catalog
	closers []func()
}

// NewServiceFactory creates a factory over the built-in catalog.
func NewServiceFactory(cfg *config.Config) *ServiceFactory {
	return &ServiceFactory{config: cfg, catalog: entity.DefaultCatalog()}
}

// Close releases every connection opened by the factory, newest first.
func (sf *ServiceFactory) Close() {
	for i := len(sf.closers) - 1; i >= 0; i-- {
		sf.closers[i]()
	}
	sf.closers = nil
}

// OpenStorage connects to the configured database.
func (sf *ServiceFactory) OpenStorage(ctx context.Context) (*Storage, error) {
	db := sf.config.Database
	switch db.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(sqlite.Config{Path: db.SQLitePath}, sf.catalog)
		if err != nil {
			return nil, err
		}
		sf.closers = append(sf.closers, func() { _ = store.Close() })
		matcher, err := sqlite.NewContentMatcher(store)
		if err != nil {
			return nil, err
		}
		return &Storage{
			entities: sqlite.NewEntityStore(store),
			leases:   sqlite.NewLeaseStore(store),
			content:  matcher,
			health:   store,
			migrate:  store.Migrate,
		}, nil

	case config.DriverPostgres:
		pool, err := repository.OpenPool(ctx, db.DSN(), repository.PoolOptions{
			MaxConns:        db.MaxConnections,
			MinConns:        db.MinConnections,
			MaxConnLifetime: db.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		sf.closers = append(sf.closers, pool.Close)
		matcher, err := repository.NewPostgreSQLContentMatchRepository(pool, sf.catalog)
		if err != nil {
			return nil, err
		}
		return &Storage{
			entities: repository.NewPostgreSQLEntityRepository(pool),
			leases:   repository.NewPostgreSQLLeaseRepository(pool),
			content:  matcher,
			health:   repository.NewPoolHealth(pool),
			migrate: func(ctx context.Context) error {
				return repository.Migrate(ctx, pool, sf.catalog)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// CreateEmbedder returns the configured embedding provider.
func (sf *ServiceFactory) CreateEmbedder() (outbound.EmbeddingService, error) {
	e := sf.config.Embedding
	switch e.Provider {
	case config.ProviderOpenAI:
		client, err := openai.NewClient(openai.ClientConfig{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			Timeout:    e.Timeout,
			MaxRetries: e.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderSimple:
		return simple.New(e.Dimensions, e.Model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", e.Provider)
	}
}

// CreateMetrics returns OpenTelemetry instruments, or no-ops when disabled.
func (sf *ServiceFactory) CreateMetrics() service.SyncMetrics {
	if !sf.config.Metrics.Enabled {
		return service.NewNoopSyncMetrics()
	}
	metrics, err := service.NewSyncMetrics(service.SyncMetricsConfig{
		ServiceName:    sf.config.Metrics.ServiceName,
		ServiceVersion: version.Get().Version,
	})
	if err != nil {
		slogger.WarnNoCtx("Metrics disabled", slogger.Field("error", err.Error()))
		return service.NewNoopSyncMetrics()
	}
	return metrics
}

// CreatePublisher connects the NATS event publisher when enabled. The
// returned checker is nil when events are disabled.
func (sf *ServiceFactory) CreatePublisher() (outbound.EventPublisher, outbound.HealthChecker, error) {
	if !sf.config.NATS.Enabled {
		return service.NewNoopEventPublisher(), nil, nil
	}
	publisher, err := messaging.NewNATSEventPublisher(sf.config.NATS)
	if err != nil {
		return nil, nil, err
	}
	if err := publisher.Connect(); err != nil {
		return nil, nil, err
	}
	sf.closers = append(sf.closers, publisher.Close)
	if err := publisher.EnsureStream(); err != nil {
		return nil, nil, err
	}
	return publisher, publisher, nil
}

// CreateSharedCache connects the Redis lookup tier when enabled.
func (sf *ServiceFactory) CreateSharedCache(ctx context.Context) (*rediscache.Cache, error) {
	if !sf.config.Redis.Enabled {
		return nil, nil
	}
	r := sf.config.Redis
	client, err := rediscache.NewClient(ctx, rediscache.Config{
		Addr:      r.Addr,
		Password:  r.Password,
		DB:        r.DB,
		KeyPrefix: r.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	sf.closers = append(sf.closers, func() { _ = client.Close() })
	return rediscache.New(client, r.KeyPrefix), nil
}

// CreateServices wires stores, providers and application services.
func (sf *ServiceFactory) CreateServices(ctx context.Context, workerID string) (*Services, error) {
	store, err := sf.OpenStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	embedder, err := sf.CreateEmbedder()
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	publisher, publisherHealth, err := sf.CreatePublisher()
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	shared, err := sf.CreateSharedCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared cache: %w", err)
	}
	metrics := sf.CreateMetrics()

	health := []inboundservice.HealthDependency{{Name: "database", Checker: store.health, Critical: true}}
	if publisherHealth != nil {
		health = append(health, inboundservice.HealthDependency{Name: "nats", Checker: publisherHealth})
	}

	cacheConfig := service.LookupCacheConfig{
		Name:    "similar_content",
		TTL:     sf.config.Lookup.TTL,
		Metrics: metrics,
	}
	if shared != nil {
		cacheConfig.Shared = shared
		health = append(health, inboundservice.HealthDependency{Name: "redis", Checker: shared})
	}

	resolver := service.NewEntityResolver(sf.catalog, store.entities,
		service.WithResolverEvents(publisher),
		service.WithResolverMetrics(metrics),
	)
	leases := service.NewLeaseCoordinator(store.leases, service.SystemClock{}, service.LeaseCoordinatorConfig{
		DefaultTimeout:  sf.config.Lease.Timeout,
		DefaultInterval: sf.config.Lease.Interval,
	}, publisher, metrics)
	similar := service.NewSimilarContentService(embedder, store.content,
		service.NewLookupCache[[]entity.Match](cacheConfig),
		service.SimilarContentConfig{
			DefaultLimit:     sf.config.Lookup.Limit,
			MaxLimit:         sf.config.Lookup.MaxLimit,
			DefaultThreshold: sf.config.Lookup.Threshold,
			EmbeddingModel:   sf.config.Embedding.Model,
		})
	embeddingSync := service.NewEmbeddingSync(leases, store.content, embedder, resolver, service.EmbeddingSyncConfig{
		WorkerID:  workerID,
		BatchSize: sf.config.Worker.BatchSize,
		Timeout:   sf.config.Worker.LeaseTimeout,
		Interval:  sf.config.Lease.Interval,
		Model:     sf.config.Embedding.Model,
	})

	return &Services{
		Resolver:       resolver,
		Leases:         leases,
		SimilarContent: similar,
		EmbeddingSync:  embeddingSync,
		Health:         health,
	}, nil
}
