package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

// redisKV is the subset of *redis.Client the backend uses.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisBackend stores the curve as one JSON string under a single key.
// A hash cannot represent an empty curve, which must still count as existing.
type RedisBackend struct {
	rdb redisKV
	key string
}

// NewRedisBackend creates a backend on an existing client.
func NewRedisBackend(rdb *redis.Client, key string) *RedisBackend {
	return &RedisBackend{rdb: rdb, key: key}
}

// DialRedis connects, pings, and returns a backend that owns the client.
func DialRedis(ctx context.Context, addr, password string, db int, key string) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return NewRedisBackend(rdb, key), nil
}

func (r *RedisBackend) Read(ctx context.Context) (models.Curve, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: redis key %s", ErrStoreMissing, r.key)
		}
		return nil, fmt.Errorf("redis: get %s: %w", r.key, err)
	}
	curve, err := decodeCurve(data)
	if err != nil {
		return nil, fmt.Errorf("redis key %s: %w", r.key, err)
	}
	return curve, nil
}

func (r *RedisBackend) Write(ctx context.Context, curve models.Curve) error {
	data, err := encodeCurve(curve)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
