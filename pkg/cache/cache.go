package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-search/internal/models"
)

const (
	productKeyPrefix = "product:"
	DefaultTTL       = 10 * time.Minute
)

var ErrUnavailable = errors.New("redis client not available")

// RedisCache holds product detail records keyed by SKU. A nil *RedisCache is
// valid and behaves as an unavailable cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and returns nil when Redis cannot be
// reached, so the service keeps working without a cache.
func NewRedisCache(ctx context.Context, redisURL string, db int, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("failed to parse Redis URL", zap.Error(err))
		return nil
	}
	opt.DB = db

	client := redis.NewClient(opt)

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Warn("redis connection failed", zap.Error(err))
		_ = client.Close()
		return nil
	}

	logger.Info("redis connected", zap.Int("db", db), zap.Duration("ttl", ttl))
	return NewWithClient(client, ttl)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) GetProduct(ctx context.Context, sku string) (*models.Product, error) {
	if !r.IsAvailable() {
		return nil, ErrUnavailable
	}

	val, err := r.client.Get(ctx, ProductKey(sku)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var product models.Product
	if err := json.Unmarshal([]byte(val), &product); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return &product, nil
}

func (r *RedisCache) SetProduct(ctx context.Context, product *models.Product) error {
	if !r.IsAvailable() {
		return ErrUnavailable
	}

	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}
	return r.client.Set(ctx, ProductKey(product.SKU), data, r.ttl).Err()
}

func ProductKey(sku string) string {
	return productKeyPrefix + sku
}

func (r *RedisCache) Close() error {
	if !r.IsAvailable() {
		return nil
	}
	return r.client.Close()
}

func (r *RedisCache) IsAvailable() bool {
	return r != nil && r.client != nil
}

func (r *RedisCache) GetStats(ctx context.Context) map[string]any {
	if !r.IsAvailable() {
		return map[string]any{
			"status": "unavailable",
		}
	}

	info := r.client.Info(ctx, "memory").Val()
	return map[string]any{
		"status":      "connected",
		"ttl_seconds": int(r.ttl.Seconds()),
		"memory_info": info,
	}
}

// GetAllKeys lists cached product keys.
func (r *RedisCache) GetAllKeys(ctx context.Context) []string {
	if !r.IsAvailable() {
		return []string{}
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, productKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if iter.Err() != nil {
		return []string{}
	}
	return keys
}

// FlushCache removes every cached product record.
func (r *RedisCache) FlushCache(ctx context.Context) (int, error) {
	if !r.IsAvailable() {
		return 0, ErrUnavailable
	}
	keys := r.GetAllKeys(ctx)
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	return int(n), err
}

func (r *RedisCache) GetKeyTTL(ctx context.Context, key string) time.Duration {
	if !r.IsAvailable() {
		return 0
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0
	}
	return ttl
}
