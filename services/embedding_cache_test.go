package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestCachedEmbedder_RedisDownPassesThrough(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	inner := newFakeEmbedder(map[string][]float32{"targets": {1, 0}})
	cached := NewCachedEmbedder(inner, rdb, time.Minute)
	ctx := context.Background()

	assert.Equal(t, []float32{1, 0}, cached.EmbedQuery(ctx, "targets"))
	assert.Equal(t, []float32{1, 0}, cached.EmbedQuery(ctx, "targets"))
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "fake-embedding", cached.Model())
}

func TestCachedEmbedder_WithRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	defer rdb.Close()

	inner := newFakeEmbedder(map[string][]float32{"targets": {0.6, 0.8}})
	cached := NewCachedEmbedder(inner, rdb, time.Minute)

	assert.Equal(t, []float32{0.6, 0.8}, cached.EmbedQuery(ctx, "targets"))
	assert.Equal(t, []float32{0.6, 0.8}, cached.EmbedQuery(ctx, "targets"))
	assert.Equal(t, 1, inner.calls, "second lookup is served from Redis")

	// failed embeddings are not cached
	assert.Empty(t, cached.EmbedQuery(ctx, "unknown"))
	assert.Empty(t, cached.EmbedQuery(ctx, "unknown"))
	assert.Equal(t, 3, inner.calls)

	// document embeddings bypass the cache
	cached.EmbedDocument(ctx, "targets")
	assert.Equal(t, 4, inner.calls)
}
