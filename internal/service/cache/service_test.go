package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kapu/gamepulse-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(zap.NewNop())
	ctx := context.Background()

	var miss []domain.CatalogPlatform
	found, err := c.Get(ctx, "platforms", &miss)
	require.NoError(t, err)
	assert.False(t, found)

	want := []domain.CatalogPlatform{{ID: 4, Slug: "pc", Name: "PC", GamesCount: 500000}}
	require.NoError(t, c.Set(ctx, "platforms", want, time.Minute))

	var got []domain.CatalogPlatform
	found, err = c.Get(ctx, "platforms", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "live_viewers:Elden Ring", 1200, time.Minute))

	var viewers int
	found, err := c.Get(ctx, "live_viewers:Elden Ring", &viewers)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1200, viewers)

	now = now.Add(time.Minute)
	found, err = c.Get(ctx, "live_viewers:Elden Ring", &viewers)
	require.NoError(t, err)
	assert.False(t, found, "entries expire at their ttl")
}

func TestMemoryCacheRejectsZeroTTL(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	assert.Error(t, c.Set(ctx, "k", "v", 0))

	found, err := c.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.False(t, found, "a rejected entry is not stored")

	assert.Equal(t, "memory", c.Tier())
	assert.True(t, c.IsConnected(ctx))
	assert.NoError(t, c.Close())
}

func TestNewCacheServiceDisabledSkipsRedis(t *testing.T) {
	c, err := NewCacheService(CacheConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Tier())
}
