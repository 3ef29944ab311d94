// Package config loads the sitemap service configuration.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	infraconfig "github.com/jonesrussell/north-cloud/sitemap/infrastructure/config"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/elasticsearch"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/sitemap/internal/database"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// Default configuration values.
const (
	defaultServiceName  = "sitemap"
	defaultServicePort  = 8095
	DefaultVersion      = "0.1.0"
	defaultRedisPrefix  = "sitemap"
	defaultStepInterval = time.Minute
	defaultLockTTL      = 5 * time.Minute
)

var errRedisRequired = &infraconfig.ValidationError{Field: "redis.address", Message: "is required (or redis.url)"}

// Storage backends.
const (
	BackendSQL           = "sql"
	BackendRedis         = "redis"
	BackendMemory        = "memory"
	BackendElasticsearch = "elasticsearch"
)

// Config holds the application configuration.
type Config struct {
	Service       ServiceConfig        `yaml:"service"`
	Auth          AuthConfig           `yaml:"auth"`
	Database      database.Config      `yaml:"database"`
	Redis         redis.Config         `yaml:"redis"`
	Elasticsearch elasticsearch.Config `yaml:"elasticsearch"`
	Logging       logger.Config        `yaml:"logging"`
	Storage       StorageConfig        `yaml:"storage"`
	Scheduler     SchedulerConfig      `yaml:"scheduler"`
	Events        sse.Config           `yaml:"events"`
	// Generation holds default generation settings; settings saved through the API win.
	Generation Generation `yaml:"generation"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"SITEMAP_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"    yaml:"debug"`
	// Profiling serves pprof under the admin API.
	Profiling bool `env:"ENABLE_PROFILING" yaml:"profiling"`
}

// AuthConfig holds admin API authentication.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"` //nolint:gosec // G117: auth config
}

// StorageConfig selects where run state and content are kept.
type StorageConfig struct {
	// State is sql, redis or memory.
	State string `env:"SITEMAP_STATE_BACKEND" yaml:"state"`
	// Content is sql or elasticsearch.
	Content string `env:"SITEMAP_CONTENT_BACKEND" yaml:"content"`
	// ContentIndex is the Elasticsearch index of content documents.
	ContentIndex string `yaml:"content_index"`
	// RedisPrefix namespaces Redis keys.
	RedisPrefix string `yaml:"redis_prefix"`
	// DistributedLock guards runs with a Redis lock shared by all replicas.
	DistributedLock bool          `env:"SITEMAP_DISTRIBUTED_LOCK" yaml:"distributed_lock"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
}

// SchedulerConfig controls cron driven generation.
type SchedulerConfig struct {
	Enabled      bool          `env:"SITEMAP_SCHEDULER_ENABLED" yaml:"enabled"`
	StepInterval time.Duration `yaml:"step_interval"`
}

// Generation wraps the default generation settings so unset YAML keys keep their defaults.
type Generation struct {
	settings.Settings `yaml:",inline"`
}

// UnmarshalYAML decodes node over settings.Defaults.
func (g *Generation) UnmarshalYAML(node *yaml.Node) error {
	s := settings.Defaults()
	if err := node.Decode(s); err != nil {
		return err
	}
	g.Settings = *s
	return nil
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}
	if normalizeErr := cfg.Generation.Normalize(); normalizeErr != nil {
		return nil, fmt.Errorf("generation settings: %w", normalizeErr)
	}
	return cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	cfg.Database.SetDefaults()
	cfg.Elasticsearch.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Events.SetDefaults()
	setStorageDefaults(&cfg.Storage)
	if cfg.Scheduler.StepInterval == 0 {
		cfg.Scheduler.StepInterval = defaultStepInterval
	}
	if cfg.Generation.BatchProcessLimit == 0 {
		baseURL := cfg.Generation.BaseURL
		cfg.Generation.Settings = *settings.Defaults()
		cfg.Generation.BaseURL = baseURL
	}
}

// setServiceDefaults applies default values to ServiceConfig.
func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = DefaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

// setStorageDefaults applies default values to StorageConfig.
func setStorageDefaults(st *StorageConfig) {
	if st.State == "" {
		st.State = BackendSQL
	}
	if st.Content == "" {
		st.Content = BackendSQL
	}
	if st.RedisPrefix == "" {
		st.RedisPrefix = defaultRedisPrefix
	}
	if st.LockTTL == 0 {
		st.LockTTL = defaultLockTTL
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel("logging.level", c.Logging.Level); err != nil {
		return err
	}

	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return &infraconfig.ValidationError{Field: "database.driver", Message: "must be postgres or sqlite3"}
	}

	switch c.Storage.State {
	case BackendSQL, BackendMemory:
	case BackendRedis:
		if !c.Redis.Configured() {
			return errRedisRequired
		}
	default:
		return &infraconfig.ValidationError{Field: "storage.state", Message: "must be sql, redis or memory"}
	}

	switch c.Storage.Content {
	case BackendSQL:
	case BackendElasticsearch:
		if err := infraconfig.ValidateRequired("elasticsearch.url", c.Elasticsearch.URL); err != nil {
			return err
		}
	default:
		return &infraconfig.ValidationError{Field: "storage.content", Message: "must be sql or elasticsearch"}
	}

	if c.Storage.DistributedLock && !c.Redis.Configured() {
		return errRedisRequired
	}
	if c.Scheduler.StepInterval < time.Second {
		return &infraconfig.ValidationError{Field: "scheduler.step_interval", Message: "must be at least 1s"}
	}

	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Storage.State == BackendRedis || c.Storage.DistributedLock
}
