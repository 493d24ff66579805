package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

// RedisCache shares prices between service instances.
type RedisCache struct {
	client *redis.Client
	logger *logger.Logger
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(addr, password string, db int, ttl time.Duration, logger *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Redis price cache connected", "addr", addr)
	return &RedisCache{client: client, logger: logger, ttl: ttl}, nil
}

// PriceKey formats the cache key of a symbol
func PriceKey(symbol string) string {
	return "price:v1:" + symbol
}

func (r *RedisCache) Get(ctx context.Context, symbol string) (models.Price, bool) {
	data, err := r.client.Get(ctx, PriceKey(symbol)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Failed to read cached price", "symbol", symbol, "error", err)
		}
		return models.Price{}, false
	}

	var price models.Price
	if err := json.Unmarshal(data, &price); err != nil {
		r.logger.Warn("Failed to decode cached price", "symbol", symbol, "error", err)
		return models.Price{}, false
	}
	return price, true
}

func (r *RedisCache) Set(ctx context.Context, price models.Price) {
	data, err := json.Marshal(price)
	if err != nil {
		r.logger.Warn("Failed to encode price", "symbol", price.Symbol, "error", err)
		return
	}
	if err := r.client.Set(ctx, PriceKey(price.Symbol), data, r.ttl).Err(); err != nil {
		r.logger.Warn("Failed to cache price", "symbol", price.Symbol, "error", err)
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
