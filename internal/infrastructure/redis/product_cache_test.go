package redis

import (
	"context"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	*memory.ProductRepository
	gets int
}

func (r *countingRepo) Get(ctx context.Context, id int64) (*domain.Product, error) {
	r.gets++
	return r.ProductRepository.Get(ctx, id)
}

func setupCache(t *testing.T) (*ProductCache, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingRepo{ProductRepository: memory.NewProductRepository()}
	p, err := domain.NewProduct(10, "Mug", "", []string{"mug.png"}, decimal.RequireFromString("5.00"), 5)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), p))

	return NewProductCache(repo, client, time.Minute, nil), repo, mr
}

func TestProductCacheReadThrough(t *testing.T) {
	cache, repo, mr := setupCache(t)
	ctx := context.Background()

	first, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	assert.True(t, mr.Exists("catalog:product:10"))

	second, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)
	assert.True(t, first.Price.Equal(second.Price))
	assert.Equal(t, []string{"mug.png"}, second.Photos)
}

func TestProductCacheEvictsOnDecrease(t *testing.T) {
	cache, repo, mr := setupCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, 10)
	require.NoError(t, err)

	update, err := cache.DecreaseForOrder(ctx, "ord_1", []domain.Line{{ProductID: 10, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, update.Remaining[10])
	assert.False(t, mr.Exists("catalog:product:10"))

	fresh, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Quantity)
	assert.Equal(t, 2, repo.gets)
}

func TestProductCacheFallsBackWhenRedisDown(t *testing.T) {
	cache, _, mr := setupCache(t)
	mr.Close()

	p, err := cache.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)
}

func TestProductCacheMissingProduct(t *testing.T) {
	cache, _, _ := setupCache(t)

	_, err := cache.Get(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
