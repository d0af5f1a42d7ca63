package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "catalog:product:"

type cachedProduct struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Photos      []string        `json:"photos"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductCache is a read-through cache in front of the catalog store.
// Every write goes to the store first and then evicts the cached entry.
// Redis failures degrade to direct store reads.
type ProductCache struct {
	next   domain.Repository
	client redis.UniversalClient
	ttl    time.Duration
	log    observability.Logger
}

var _ domain.Repository = (*ProductCache)(nil)

func NewProductCache(next domain.Repository, client redis.UniversalClient, ttl time.Duration, logger observability.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ProductCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    logger.With(observability.F("component", "product_cache")),
	}
}

func (c *ProductCache) Get(ctx context.Context, id int64) (*domain.Product, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var cp cachedProduct
		if uerr := json.Unmarshal(data, &cp); uerr == nil {
			return cp.toDomain(), nil
		}
		c.log.Warn("product_cache_corrupt", observability.F("product_id", id))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("product_cache_get_failed", observability.F("product_id", id), observability.F("error", err))
	}

	p, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *ProductCache) Save(ctx context.Context, p *domain.Product) error {
	if err := c.next.Save(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, p.ID)
	return nil
}

func (c *ProductCache) DecreaseForOrder(ctx context.Context, orderID string, lines []domain.Line) (*domain.StockUpdate, error) {
	update, err := c.next.DecreaseForOrder(ctx, orderID, lines)
	if err != nil {
		return nil, err
	}
	for id := range update.Remaining {
		c.evict(ctx, id)
	}
	return update, nil
}

func (c *ProductCache) store(ctx context.Context, p *domain.Product) {
	data, err := json.Marshal(fromDomain(p))
	if err != nil {
		return
	}
	// jitter spreads expiry of products warmed together
	ttl := c.ttl + time.Duration(rand.Int64N(int64(c.ttl/10)+1))
	if err := c.client.Set(ctx, cacheKey(p.ID), data, ttl).Err(); err != nil {
		c.log.Warn("product_cache_set_failed", observability.F("product_id", p.ID), observability.F("error", err))
	}
}

func (c *ProductCache) evict(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.log.Warn("product_cache_evict_failed", observability.F("product_id", id), observability.F("error", err))
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

func fromDomain(p *domain.Product) cachedProduct {
	return cachedProduct{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Photos:      p.Photos,
		Price:       p.Price,
		Quantity:    p.Quantity,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (cp cachedProduct) toDomain() *domain.Product {
	return &domain.Product{
		ID:          cp.ID,
		Title:       cp.Title,
		Description: cp.Description,
		Photos:      cp.Photos,
		Price:       cp.Price,
		Quantity:    cp.Quantity,
		UpdatedAt:   cp.UpdatedAt,
	}
}
