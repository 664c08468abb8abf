package cache

import (
	"context"
	"fmt"
	"time"

	"example.com/powermon/config"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = redis.Nil

// Client is an interface for cache operations
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// redisClient implements the Client interface
type redisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis-backed cache client
func NewRedisClient(cfg config.RedisConfig) (Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisClient{client: client}, nil
}

// StateKey is the cache key holding a device's current power state.
func StateKey(deviceID string) string {
	return "power:state:" + deviceID
}

// Get retrieves a value from Redis
func (r *redisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Set stores a value in Redis with expiration
func (r *redisClient) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Delete removes a key from Redis
func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close closes the Redis connection
func (r *redisClient) Close() error {
	return r.client.Close()
}

// noopClient is used when Redis is unavailable; every read misses.
type noopClient struct{}

// NewNoopClient creates a cache client that stores nothing.
func NewNoopClient() Client {
	return &noopClient{}
}

func (n *noopClient) Get(ctx context.Context, key string) (string, error) {
	return "", ErrMiss
}

func (n *noopClient) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return nil
}

func (n *noopClient) Delete(ctx context.Context, key string) error {
	return nil
}

func (n *noopClient) Close() error {
	return nil
}
