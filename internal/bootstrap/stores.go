package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	infraes "github.com/jonesrussell/north-cloud/sitemap/infrastructure/elasticsearch"
	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	infraredis "github.com/jonesrussell/north-cloud/sitemap/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/sitemap/internal/config"
	"github.com/jonesrussell/north-cloud/sitemap/internal/contentstore"
	"github.com/jonesrussell/north-cloud/sitemap/internal/database"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
	"github.com/jonesrussell/north-cloud/sitemap/internal/producer"
	"github.com/jonesrussell/north-cloud/sitemap/internal/state"
)

// ContentWriter stores content items in the configured content backend.
type ContentWriter interface {
	Upsert(ctx context.Context, item *domain.ContentItem) error
}

// Stores holds the connections and stores selected by configuration.
type Stores struct {
	DB      *sqlx.DB
	Redis   *goredis.Client
	Search  *es.Client
	Content producer.ContentStore
	// ContentWriter is the write side of Content.
	ContentWriter ContentWriter
	Menus         *database.MenuRepository
	Deltas        *database.DeltaRepository
	Settings      *database.SettingsRepository
	States        generator.StateStore
	Locker        generator.Locker
}

// SetupStores opens the configured backends. The database always holds deltas,
// settings and menus; run state and content follow the storage configuration.
func SetupStores(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*Stores, error) {
	db, dbErr := database.NewConnection(ctx, cfg.Database)
	if dbErr != nil {
		return nil, fmt.Errorf("database connection: %w", dbErr)
	}
	log.Info("Database connection established", infralogger.String("driver", cfg.Database.Driver))

	s := &Stores{
		DB:       db,
		Menus:    database.NewMenuRepository(db),
		Deltas:   database.NewDeltaRepository(db),
		Settings: database.NewSettingsRepository(db),
	}

	if cfg.UsesRedis() {
		client, redisErr := infraredis.NewClient(ctx, cfg.Redis)
		if redisErr != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis connection: %w", redisErr)
		}
		s.Redis = client
		log.Info("Redis connection established", infralogger.String("address", client.Options().Addr))
	}

	switch cfg.Storage.State {
	case config.BackendRedis:
		s.States = state.NewRedisStore(s.Redis, cfg.Storage.RedisPrefix, 0)
	case config.BackendMemory:
		s.States = state.NewMemoryStore()
	default:
		s.States = database.NewProgressRepository(db)
	}

	if cfg.Storage.DistributedLock {
		s.Locker = state.NewRedisLocker(s.Redis, cfg.Storage.RedisPrefix, cfg.Storage.LockTTL)
	}

	if cfg.Storage.Content == config.BackendElasticsearch {
		client, esErr := infraes.NewClient(ctx, cfg.Elasticsearch, log)
		if esErr != nil {
			_ = s.Close()
			return nil, fmt.Errorf("elasticsearch connection: %w", esErr)
		}
		store := contentstore.NewElasticsearchStore(client, cfg.Storage.ContentIndex)
		s.Search = client
		if indexErr := store.EnsureIndex(ctx); indexErr != nil {
			_ = s.Close()
			return nil, fmt.Errorf("ensure content index: %w", indexErr)
		}
		s.Content = store
		s.ContentWriter = store
	} else {
		repo := database.NewContentRepository(db)
		s.Content = repo
		s.ContentWriter = repo
	}

	return s, nil
}

// PingRedis checks the Redis connection, if any.
func (s *Stores) PingRedis(ctx context.Context) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Ping(ctx).Err()
}

// PingSearch checks the Elasticsearch connection, if any.
func (s *Stores) PingSearch(ctx context.Context) error {
	if s.Search == nil {
		return nil
	}
	res, err := s.Search.Ping(s.Search.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// Close releases every open connection.
func (s *Stores) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, database.Close(s.DB))
	}
	return errors.Join(errs...)
}

const healthCheckTimeout = 2 * time.Second

func withTimeout(fn func(ctx context.Context) error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return fn(ctx)
	}
}
