package state_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/state"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleState() *domain.ProgressState {
	s := &domain.ProgressState{
		RunID:      "run-1",
		Mode:       domain.ModeInteractive,
		Phase:      domain.PhaseRunning,
		Settings:   []byte(`{"max_links":2}`),
		Operations: []domain.Operation{{Producer: "record", Context: "default", Total: 4, Counted: true, Processed: 2}},
		SeenGlobal: map[string]bool{"/a": true},
	}
	s.Context("default").Buffer = []domain.Variant{{Language: "en", URL: "https://example.com/a"}}
	return s
}

type progressStore interface {
	Load(ctx context.Context) (*domain.ProgressState, error)
	Save(ctx context.Context, s *domain.ProgressState) error
	Delete(ctx context.Context) error
}

func exerciseProgressStore(t *testing.T, store progressStore) {
	t.Helper()
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, store.Save(ctx, sampleState()))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, 2, loaded.Operations[0].Processed)
	assert.True(t, loaded.SeenGlobal["/a"])
	assert.Len(t, loaded.Contexts["default"].Buffer, 1)
	assert.JSONEq(t, `{"max_links":2}`, string(loaded.Settings))

	require.NoError(t, store.Delete(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseProgressStore(t, state.NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := state.NewMemoryStore()
	require.NoError(t, store.Save(ctx, sampleState()))

	first, err := store.Load(ctx)
	require.NoError(t, err)
	first.Operations[0].Processed = 99

	second, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Operations[0].Processed)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	exerciseProgressStore(t, state.NewRedisStore(client, "sitemap", time.Hour))
}

func TestRedisStore_CorruptState(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	require.NoError(t, mr.Set("sitemap:progress", "{not json"))

	_, err := state.NewRedisStore(client, "sitemap", 0).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStateCorrupt))
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	mr.Close()

	_, err := state.NewRedisStore(client, "sitemap", 0).Load(context.Background())
	require.Error(t, err)
}

func TestRedisLocker(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	ctx := context.Background()
	locker := state.NewRedisLocker(client, "sitemap", time.Minute)

	unlock, ok, err := locker.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("sitemap:lock"))

	_, ok, err = state.NewRedisLocker(client, "sitemap", time.Minute).TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	assert.False(t, mr.Exists("sitemap:lock"))

	unlock2, ok, err := locker.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	unlock2()
}

func TestRedisLocker_DoesNotReleaseForeignLock(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	locker := state.NewRedisLocker(client, "sitemap", time.Minute)

	unlock, ok, err := locker.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate expiry followed by another process taking the lock.
	require.NoError(t, mr.Set("sitemap:lock", "someone-else"))
	unlock()

	got, getErr := mr.Get("sitemap:lock")
	require.NoError(t, getErr)
	assert.Equal(t, "someone-else", got)
}

func TestMemoryDeltaStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := state.NewMemoryDeltaStore()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, &domain.Delta{Context: "default", RunID: "old", DeltaIndex: 1, Payload: []byte("old-1")}))
	require.NoError(t, store.Publish(ctx, "default", "old"))

	require.NoError(t, store.DeletePending(ctx, "default"))
	require.NoError(t, store.Insert(ctx, &domain.Delta{Context: "default", RunID: "new", DeltaIndex: 1, Payload: []byte("x")}))
	require.NoError(t, store.Insert(ctx, &domain.Delta{
		Context: "default", RunID: "new", DeltaIndex: 1, Payload: []byte("new-1"), CreatedAt: created,
	}))
	require.NoError(t, store.Insert(ctx, &domain.Delta{Context: "default", RunID: "new", DeltaIndex: 2, Payload: []byte("new-2")}))
	assert.Equal(t, 2, store.Pending("default"))

	// Staged deltas are invisible until published.
	list, err := store.ListPublished(ctx, "default")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "old", list[0].RunID)

	require.NoError(t, store.Publish(ctx, "default", "new"))
	list, err = store.ListPublished(ctx, "default")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].Payload)
	assert.Equal(t, created, list[0].CreatedAt)

	d, err := store.GetPublished(ctx, "default", 1)
	require.NoError(t, err)
	assert.Equal(t, "new-1", string(d.Payload))

	_, err = store.GetPublished(ctx, "default", 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Publishing again is a no-op.
	require.NoError(t, store.Publish(ctx, "default", "new"))
	list, err = store.ListPublished(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
