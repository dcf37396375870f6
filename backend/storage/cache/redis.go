package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a struct representing a Redis cache instance.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new instance of RedisCache.
// This function doesn't establish a connection to the Redis server.
// To connect to the server, use the Connect method of the returned RedisCache instance.
func NewRedisCache() *RedisCache {
	return &RedisCache{}
}

// Connect parses the Redis URL, creates the client and pings the server.
func (r *RedisCache) Connect(redisURL string) error {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	r.client = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Disconnect closes the connection to the Redis server.
func (r *RedisCache) Disconnect() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Set marshals the value into JSON and stores it under key for ttl.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	marshaledValue, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, marshaledValue, ttl).Err()
}

// Get retrieves the value of a given key and unmarshals it from JSON.
// If the key is not found, it returns ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, err
	}

	var result interface{}
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes all keys from the currently selected database in the Redis cache.
func (r *RedisCache) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}
