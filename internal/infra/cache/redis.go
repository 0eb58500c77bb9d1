package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/metrics"
)

const hashKeyPrefix = "briefing:hash:"

// RedisHashIndex реализует domain.HashIndex через Redis.
type RedisHashIndex struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.HashIndex = (*RedisHashIndex)(nil)

// NewRedis создаёт индекс; ttl <= 0 означает хранение без срока.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisHashIndex {
	return &RedisHashIndex{client: client, ttl: ttl}
}

// Connect создаёт клиента и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Lookup возвращает идентификатор брифинга для хэша выборки.
func (c *RedisHashIndex) Lookup(ctx context.Context, datasetHash string) (string, bool, error) {
	start := time.Now()
	id, err := c.client.Get(ctx, hashKeyPrefix+datasetHash).Result()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", "briefing_hash", start, nil)
		return "", false, nil
	}
	metrics.ObserveNetworkRequest("redis", "get", "briefing_hash", start, err)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember связывает хэш выборки с брифингом.
func (c *RedisHashIndex) Remember(ctx context.Context, datasetHash, briefingID string) error {
	start := time.Now()
	err := c.client.Set(ctx, hashKeyPrefix+datasetHash, briefingID, c.ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "briefing_hash", start, err)
	return err
}
