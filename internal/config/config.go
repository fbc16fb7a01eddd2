// Package config loads the dgsync configuration through viper.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Embedding providers.
const (
	ProviderSimple = "simple"
	ProviderOpenAI = "openai"
)

// Config holds the complete application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Lookup    LookupConfig    `mapstructure:"lookup"`
	Lease     LeaseConfig     `mapstructure:"lease"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableCORS    *bool         `mapstructure:"enable_cors"`
	EnableLogging *bool         `mapstructure:"enable_logging"`
}

// CORSEnabled reports whether CORS headers are served. Defaults to true.
func (a APIConfig) CORSEnabled() bool {
	return a.EnableCORS == nil || *a.EnableCORS
}

// LoggingEnabled reports whether requests are logged. Defaults to true.
func (a APIConfig) LoggingEnabled() bool {
	return a.EnableLogging == nil || *a.EnableLogging
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Schema          string        `mapstructure:"schema"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Schema)
}

// NATSConfig holds NATS JetStream configuration. Events are only published
// when Enabled is set.
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Stream        string        `mapstructure:"stream"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
}

// RedisConfig holds the shared lookup cache tier configuration.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LookupConfig holds similar-content lookup defaults.
type LookupConfig struct {
	Limit     int           `mapstructure:"limit"`
	MaxLimit  int           `mapstructure:"max_limit"`
	Threshold float64       `mapstructure:"threshold"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LeaseConfig holds the default sync task timings.
type LeaseConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

// WorkerConfig holds sync worker configuration.
type WorkerConfig struct {
	ID           string        `mapstructure:"id"`
	Schedule     string        `mapstructure:"schedule"`
	Targets      []int64       `mapstructure:"targets"`
	Function     string        `mapstructure:"function"`
	BatchSize    int           `mapstructure:"batch_size"`
	Concurrency  int           `mapstructure:"concurrency"`
	LeaseTimeout time.Duration `mapstructure:"lease_timeout"`
}

// MetricsConfig holds OpenTelemetry metrics configuration.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "30s")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "dgsync")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.sqlite_path", "dgsync.db")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream", "DGSYNC_EVENTS")
	v.SetDefault("nats.subject_prefix", "dgsync.events")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "dgsync:lookup:")

	v.SetDefault("embedding.provider", ProviderSimple)
	v.SetDefault("embedding.model", "openai_text_embedding_3_small_1536")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.max_retries", 3)

	v.SetDefault("lookup.limit", 10)
	v.SetDefault("lookup.max_limit", 100)
	v.SetDefault("lookup.threshold", 0.7)
	v.SetDefault("lookup.ttl", "10m")

	v.SetDefault("lease.timeout", "20s")
	v.SetDefault("lease.interval", "45s")

	v.SetDefault("worker.schedule", "@every 1m")
	v.SetDefault("worker.function", "embedding")
	v.SetDefault("worker.batch_size", 200)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.lease_timeout", "5m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.service_name", "dgsync")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.Schema == "" {
			return errors.New("database.schema is required")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required")
		}
		if c.Database.Name == "" {
			return errors.New("database.name is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return errors.New("database.port must be between 1 and 65535")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required")
		}
	default:
		return fmt.Errorf("database.driver must be %s or %s", DriverPostgres, DriverSQLite)
	}

	switch c.Embedding.Provider {
	case ProviderSimple:
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return errors.New("embedding.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be %s or %s", ProviderSimple, ProviderOpenAI)
	}
	if c.Embedding.Dimensions < 1 {
		return errors.New("embedding.dimensions must be positive")
	}

	if c.Lookup.Threshold < 0 || c.Lookup.Threshold > 1 {
		return errors.New("lookup.threshold must be between 0 and 1")
	}
	if c.Lookup.Limit < 1 || (c.Lookup.MaxLimit > 0 && c.Lookup.Limit > c.Lookup.MaxLimit) {
		return errors.New("lookup.limit must be between 1 and lookup.max_limit")
	}

	if c.Lease.Timeout < 0 || c.Lease.Interval < 0 {
		return errors.New("lease timings must not be negative")
	}

	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	if len(c.Worker.Function) > 20 {
		return errors.New("worker.function must be at most 20 characters")
	}
	if slices.ContainsFunc(c.Worker.Targets, func(t int64) bool { return t <= 0 }) {
		return errors.New("worker.targets must be positive ids")
	}

	if c.NATS.Enabled && !strings.HasPrefix(c.NATS.URL, "nats://") {
		return errors.New("nats.url must use the nats:// scheme")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}
