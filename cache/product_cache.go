package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"commerce-core/models"
)

const (
	productCachePrefix = "product:ledger:"

	// DefaultTTL bounds staleness for readers that miss an invalidation.
	DefaultTTL = 5 * time.Minute
)

// ProductCache caches product ledger reads in Redis. It is strictly a read
// accelerator: every ledger mutation invalidates the entry, and the TTL
// bounds staleness if an invalidation is lost.
type ProductCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProductCache creates a cache with the default TTL.
func NewProductCache(rdb *redis.Client, logger *zap.Logger) *ProductCache {
	return &ProductCache{redis: rdb, ttl: DefaultTTL, logger: logger}
}

// Get returns the cached product, or false on a miss.
func (c *ProductCache) Get(ctx context.Context, productID string) (*models.Product, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, productCachePrefix+productID).Result()
	if err != nil {
		return nil, false
	}
	var product models.Product
	if err := json.Unmarshal([]byte(data), &product); err != nil {
		c.logger.Warn("Failed to unmarshal cached product", zap.Error(err), zap.String("product_id", productID))
		return nil, false
	}
	return &product, true
}

// SetAsync caches a product in the background.
func (c *ProductCache) SetAsync(product *models.Product) {
	if c == nil || c.redis == nil || product == nil {
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data, err := json.Marshal(product)
		if err != nil {
			c.logger.Warn("Failed to marshal product for cache", zap.Error(err), zap.String("product_id", product.ID))
			return
		}
		if err := c.redis.Set(bgCtx, productCachePrefix+product.ID, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache product", zap.Error(err), zap.String("product_id", product.ID))
		}
	}()
}

// Invalidate drops cached entries after a ledger mutation. Best-effort; a
// failed delete only means a reader may see the TTL-bounded stale copy.
func (c *ProductCache) Invalidate(ctx context.Context, productIDs ...string) {
	if c == nil || c.redis == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, productCachePrefix+id)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Failed to invalidate product cache", zap.Error(err), zap.Strings("product_ids", productIDs))
	}
}
