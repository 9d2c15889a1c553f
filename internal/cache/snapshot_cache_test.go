package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/bidback-engine/internal/models"
	"github.com/irfndi/bidback-engine/internal/testutil"
)

func testSnapshot(date string) *models.MarketSnapshot {
	day, _ := time.Parse("2006-01-02", date)
	return &models.MarketSnapshot{
		ID:             "snap-" + date,
		StocksUp4Pct:   800,
		StocksDown4Pct: 150,
		T2108:          45.0,
		VIX:            18.2,
		Date:           day,
	}
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)
	cache := NewSnapshotCache(client, time.Hour)
	ctx := context.Background()

	_, ok := cache.GetLatest(ctx)
	assert.False(t, ok)

	snap := testSnapshot("2025-03-10")
	require.NoError(t, cache.SetLatest(ctx, snap))

	got, ok := cache.GetLatest(ctx)
	require.True(t, ok)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, snap.StocksUp4Pct, got.StocksUp4Pct)
	assert.Equal(t, snap.VIX, got.VIX)
	assert.True(t, snap.Date.Equal(got.Date))

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestSnapshotCacheExpires(t *testing.T) {
	server, client := testutil.NewMiniredisClient(t)
	cache := NewSnapshotCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.SetLatest(ctx, testSnapshot("2025-03-10")))

	server.FastForward(2 * time.Minute)

	_, ok := cache.GetLatest(ctx)
	assert.False(t, ok)
}

func TestSnapshotCacheHistory(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)
	cache := NewSnapshotCache(client, time.Hour)
	ctx := context.Background()

	_, ok := cache.GetHistory(ctx)
	assert.False(t, ok)

	history := []models.MarketSnapshot{
		*testSnapshot("2025-03-06"),
		*testSnapshot("2025-03-07"),
		*testSnapshot("2025-03-10"),
	}
	require.NoError(t, cache.SetHistory(ctx, history))

	got, ok := cache.GetHistory(ctx)
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Before(got[2].Date))
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)
	cache := NewSnapshotCache(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, cache.SetLatest(ctx, testSnapshot("2025-03-10")))
	require.NoError(t, cache.SetHistory(ctx, []models.MarketSnapshot{*testSnapshot("2025-03-10")}))

	require.NoError(t, cache.Invalidate(ctx))

	_, ok := cache.GetLatest(ctx)
	assert.False(t, ok)
	_, ok = cache.GetHistory(ctx)
	assert.False(t, ok)
}

func TestSnapshotCacheCorruptEntry(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)
	cache := NewSnapshotCache(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "bidback:snapshot:latest", "{not json", 0).Err())

	_, ok := cache.GetLatest(ctx)
	assert.False(t, ok)
	assert.Equal(t, int64(1), cache.Stats().Misses)
}
