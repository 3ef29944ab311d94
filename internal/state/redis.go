package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// Redis key suffixes under the configured prefix.
const (
	progressKeySuffix = ":progress"
	lockKeySuffix     = ":lock"
)

// DefaultLockTTL is used when a RedisLocker is created with a TTL under a second.
const DefaultLockTTL = 5 * time.Minute

// RedisStore keeps the progress state of the in-flight run in Redis.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps the state until deleted.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: prefix + progressKeySuffix, ttl: ttl}
}

// Load returns the stored state, or nil when there is none.
func (s *RedisStore) Load(ctx context.Context) (*domain.ProgressState, error) {
	data, getErr := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(getErr, redis.Nil) {
		return nil, nil
	}
	if getErr != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, getErr)
	}
	return decode(data)
}

// Save replaces the stored state.
func (s *RedisStore) Save(ctx context.Context, state *domain.ProgressState) error {
	data, marshalErr := json.Marshal(state)
	if marshalErr != nil {
		return fmt.Errorf("encode progress state: %w", marshalErr)
	}
	if setErr := s.client.Set(ctx, s.key, data, s.ttl).Err(); setErr != nil {
		return fmt.Errorf("set %s: %w", s.key, setErr)
	}
	return nil
}

// Delete removes the stored state.
func (s *RedisStore) Delete(ctx context.Context) error {
	if delErr := s.client.Del(ctx, s.key).Err(); delErr != nil {
		return fmt.Errorf("delete %s: %w", s.key, delErr)
	}
	return nil
}

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker is a Redis lock that serializes generation invocations across processes.
// The lock is refreshed while held so long invocations do not lose it.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl < time.Second {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, key: prefix + lockKeySuffix, ttl: ttl}
}

// TryLock acquires the lock without waiting.
func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, setErr := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if setErr != nil {
		return nil, false, fmt.Errorf("lock %s: %w", l.key, setErr)
	}
	if !ok {
		return nil, false, nil
	}

	done := make(chan struct{})
	go l.refresh(token, done)

	unlock := func() {
		close(done)
		// Release even when the caller's context has ended.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ttl)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
	}
	return unlock, true, nil
}

func (l *RedisLocker) refresh(token string, done <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			_ = extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Err()
			cancel()
		}
	}
}
