package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-search/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCache(context.Background(), "redis://"+mr.Addr(), 0, time.Minute, nil)
	require.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestProductRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	in := &models.Product{
		SKU:       "TE-24155",
		Title:     "Monitor plano TEROS",
		Brand:     "TEROS",
		Price:     459,
		Stock:     100,
		Features:  []string{"IPS", "75Hz"},
		FetchedAt: fetched,
	}
	require.NoError(t, c.SetProduct(ctx, in))

	raw, err := mr.Get("product:TE-24155")
	require.NoError(t, err)
	assert.Contains(t, raw, `"sku":"TE-24155"`)
	assert.Contains(t, raw, `"features":["IPS","75Hz"]`)
	assert.Equal(t, time.Minute, mr.TTL("product:TE-24155"))

	out, err := c.GetProduct(ctx, "TE-24155")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Features, out.Features)
	assert.InDelta(t, 459.0, out.Price, 0.001)
	assert.True(t, fetched.Equal(out.FetchedAt))
}

func TestGetProductMissAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, c.SetProduct(ctx, &models.Product{SKU: "A"}))
	mr.FastForward(2 * time.Minute)

	p, err = c.GetProduct(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetProductCorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("product:A", "{not json"))

	_, err := c.GetProduct(context.Background(), "A")
	assert.Error(t, err)
}

func TestKeysTTLAndFlush(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, sku := range []string{"A", "B", "C"} {
		require.NoError(t, c.SetProduct(ctx, &models.Product{SKU: sku}))
	}
	require.NoError(t, mr.Set("session:xyz", "keep"))

	assert.ElementsMatch(t, []string{"product:A", "product:B", "product:C"}, c.GetAllKeys(ctx))
	assert.Equal(t, time.Minute, c.GetKeyTTL(ctx, "product:A"))

	stats := c.GetStats(ctx)
	assert.Equal(t, "connected", stats["status"])
	assert.Equal(t, 60, stats["ttl_seconds"])

	n, err := c.FlushCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, c.GetAllKeys(ctx))
	assert.True(t, mr.Exists("session:xyz"))

	n, err = c.FlushCache(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, NewRedisCache(context.Background(), "redis://"+addr, 0, 0, nil))
}
