// Package cache provides a namespace-partitioned key-value store used for
// search result caching. Keys share a namespace prefix so a whole namespace
// can be invalidated at once instead of tracking per-key dependencies.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the cache contract consumed by the search service. Implementations
// must treat Get on a missing key as (nil, false, nil), not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	FindByNamespace(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// Redis implements Store on a go-redis client.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis creates a redis-backed Store.
func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, logger: logger}
}

// Get returns the value for key, with found=false on a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Exists reports whether key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindByNamespace returns all keys sharing the given prefix via SCAN.
func (r *Redis) FindByNamespace(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes the given keys. Missing keys are not an error.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// InvalidateNamespace deletes every key under prefix. Over-invalidation is
// safe; under-invalidation is not, so callers clear whole namespaces.
func InvalidateNamespace(ctx context.Context, s Store, prefix string) error {
	keys, err := s.FindByNamespace(ctx, prefix)
	if err != nil {
		return err
	}
	return s.Delete(ctx, keys...)
}
