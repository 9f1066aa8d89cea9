//go:build integration

package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis uri: %v", err)
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}

	client := redis.NewClient(opt)
	t.Cleanup(func() {
		client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStoreSlidingWindow(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client, dayPolicy, "test-quota:")
	ctx := context.Background()
	start := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d, err := store.Take(ctx, "id", start.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i+1, d.Count)
	}

	d, err := store.Take(ctx, "id", start.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 19*time.Hour, d.RetryAfter)

	d, err = store.Take(ctx, "id", start.Add(24*time.Hour+time.Second))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	ttl, err := client.PTTL(ctx, "test-quota:id").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestRedisStoreConcurrentTake(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client, dayPolicy, "test-quota:")
	now := time.Now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := store.Take(context.Background(), "shared", now)
			if err != nil || !d.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
}
