package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage creates a Storage in Redis. Keys expire after ttl of
// inactivity; a zero ttl keeps them forever.
func NewRedisStorage(client *redis.Client, ttl time.Duration) Storage {
	return &redisStorage{client: client, ttl: ttl}
}

func (r *redisStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read storage key: %w", err)
	}

	if r.ttl > 0 {
		r.client.Expire(ctx, key, r.ttl)
	}

	return value, nil
}

func (r *redisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write storage key: %w", err)
	}
	return nil
}

func (r *redisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete storage keys: %w", err)
	}
	return nil
}
