package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, capacity int) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(capacity, time.Hour, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first mark wins", func(t *testing.T) {
		store, _ := newTestStore(t, 0)

		marked, err := store.MarkProcessed(ctx, "t1:BANK_TRANSFER:TXN-001", time.Hour)
		require.NoError(t, err)
		assert.True(t, marked)

		marked, err = store.MarkProcessed(ctx, "t1:BANK_TRANSFER:TXN-001", time.Hour)
		require.NoError(t, err)
		assert.False(t, marked)
	})

	t.Run("different methods are different keys", func(t *testing.T) {
		store, _ := newTestStore(t, 0)

		first, _ := store.MarkProcessed(ctx, "t1:BANK_TRANSFER:TXN-001", time.Hour)
		second, _ := store.MarkProcessed(ctx, "t1:CARD:TXN-001", time.Hour)
		assert.True(t, first)
		assert.True(t, second)
		assert.Equal(t, 2, store.Size())
	})

	t.Run("expired key can be marked again", func(t *testing.T) {
		store, clock := newTestStore(t, 0)

		_, _ = store.MarkProcessed(ctx, "ref", time.Minute)
		clock.Advance(2 * time.Minute)

		marked, err := store.MarkProcessed(ctx, "ref", time.Minute)
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("concurrent marks admit exactly one", func(t *testing.T) {
		store, _ := newTestStore(t, 0)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := store.MarkProcessed(ctx, "t1:CASH:RCPT-9", time.Hour); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t, 0)

	processed, err := store.IsProcessed(ctx, "ref")
	require.NoError(t, err)
	assert.False(t, processed)

	_, _ = store.MarkProcessed(ctx, "ref", time.Minute)
	processed, _ = store.IsProcessed(ctx, "ref")
	assert.True(t, processed)

	clock.Advance(time.Minute)
	processed, _ = store.IsProcessed(ctx, "ref")
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Capacity(t *testing.T) {
	ctx := context.Background()

	t.Run("expired keys are dropped first", func(t *testing.T) {
		store, clock := newTestStore(t, 2)

		_, _ = store.MarkProcessed(ctx, "short", time.Minute)
		_, _ = store.MarkProcessed(ctx, "long", time.Hour)
		clock.Advance(2 * time.Minute)

		marked, _ := store.MarkProcessed(ctx, "new", time.Hour)
		assert.True(t, marked)
		assert.Equal(t, 2, store.Size())

		long, _ := store.IsProcessed(ctx, "long")
		assert.True(t, long)
	})

	t.Run("soonest expiring key is evicted when full", func(t *testing.T) {
		store, _ := newTestStore(t, 2)

		_, _ = store.MarkProcessed(ctx, "a", time.Minute)
		_, _ = store.MarkProcessed(ctx, "b", time.Hour)
		_, _ = store.MarkProcessed(ctx, "c", time.Hour)

		assert.Equal(t, 2, store.Size())
		a, _ := store.IsProcessed(ctx, "a")
		b, _ := store.IsProcessed(ctx, "b")
		c, _ := store.IsProcessed(ctx, "c")
		assert.False(t, a)
		assert.True(t, b)
		assert.True(t, c)
	})
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore(10)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestIdempotencyStoreFactory_RedisDisabled(t *testing.T) {
	cfg := &config.Config{
		App:    config.AppConfig{Env: "development"},
		Redis:  config.RedisConfig{Enabled: false},
		Ledger: config.LedgerConfig{IdempotencyCapacity: 10},
	}

	store, err := NewIdempotencyStoreFactory(cfg).CreateStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
}

func TestIdempotencyStoreFactory_UnreachableRedis(t *testing.T) {
	unreachable := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	t.Run("falls back outside production", func(t *testing.T) {
		cfg := &config.Config{App: config.AppConfig{Env: "development"}, Redis: unreachable}

		store, err := NewIdempotencyStoreFactory(cfg).CreateStore(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("fails when fallback disabled", func(t *testing.T) {
		cfg := &config.Config{App: config.AppConfig{Env: "development"}, Redis: unreachable}

		_, err := NewIdempotencyStoreFactory(cfg, WithInMemoryFallback(false)).CreateStore(ctx)
		assert.Error(t, err)
	})
}
