// Package redis builds verified go-redis clients for run state and run locks.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration. URL, when set, wins over the
// discrete fields and accepts redis:// and rediss:// forms.
type Config struct {
	URL         string        `env:"REDIS_URL"      yaml:"url"`
	Address     string        `env:"REDIS_ADDRESS"  yaml:"address"`
	Password    string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB          int           `env:"REDIS_DB"       yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ErrEmptyAddress is returned when neither a URL nor an address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout  = 5 * time.Second
	defaultDialTimeout = 5 * time.Second
)

// Configured reports whether a Redis endpoint is set.
func (c Config) Configured() bool {
	return c.URL != "" || c.Address != ""
}

func (c Config) options() (*redis.Options, error) {
	var opts *redis.Options
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		if c.Address == "" {
			return nil, ErrEmptyAddress
		}
		opts = &redis.Options{Addr: c.Address, Password: c.Password, DB: c.DB}
	}

	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	opts.DialTimeout = c.DialTimeout
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	return opts, nil
}

// NewClient creates a Redis client and verifies it with PING.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, optsErr := cfg.options()
	if optsErr != nil {
		return nil, optsErr
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, pingErr)
	}
	return client, nil
}
