package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ophion/companion/internal/ports"
)

// CacheRepositoryImpl implements the CacheRepository interface using Redis
type CacheRepositoryImpl struct {
	client *redis.Client
	prefix string
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(client *redis.Client) ports.CacheRepository {
	return &CacheRepositoryImpl{client: client, prefix: "companion:"}
}

func (r *CacheRepositoryImpl) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+key, data, expiration).Err(); err != nil {
		return fmt.Errorf("set cache: %w", err)
	}
	return nil
}

func (r *CacheRepositoryImpl) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.ErrCacheMiss
		}
		return fmt.Errorf("get cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

func (r *CacheRepositoryImpl) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete cache: %w", err)
	}
	return nil
}

func (r *CacheRepositoryImpl) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("exists cache: %w", err)
	}
	return n > 0, nil
}

func (r *CacheRepositoryImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
