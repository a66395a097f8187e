package adapter

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter defines the interface for distributed rate limiting
type RedisRateLimiter interface {
	// Allow reports whether a request under key fits within limit
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RedisClient defines the interface for Redis operations to enable mocking.
// Used by the worker for the parked-job failure set and by the API for
// request rate limiting.
type RedisClient interface {
	// Ping checks if Redis is reachable
	Ping(ctx context.Context) error

	// NewRateLimiter creates a distributed rate limiter backed by this client
	NewRateLimiter() RedisRateLimiter

	// SAdd adds members to the set stored at key
	SAdd(ctx context.Context, key string, members ...interface{}) error

	// SMembers returns all members of the set stored at key
	SMembers(ctx context.Context, key string) ([]string, error)

	// SRem removes members from the set stored at key
	SRem(ctx context.Context, key string, members ...interface{}) error

	// Close closes the Redis connection
	Close() error
}

// RealRedisClient wraps the actual Redis client
type RealRedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) RedisClient {
	return &RealRedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewRedisClientFromClient wraps an existing go-redis client (used in tests)
func NewRedisClientFromClient(client *redis.Client) RedisClient {
	return &RealRedisClient{client: client}
}

// Ping checks if Redis is reachable
func (r *RealRedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewRateLimiter creates a distributed rate limiter backed by this client
func (r *RealRedisClient) NewRateLimiter() RedisRateLimiter {
	return redis_rate.NewLimiter(r.client)
}

// SAdd adds members to the set stored at key
func (r *RealRedisClient) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return r.client.SAdd(ctx, key, members...).Err()
}

// SMembers returns all members of the set stored at key
func (r *RealRedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

// SRem removes members from the set stored at key
func (r *RealRedisClient) SRem(ctx context.Context, key string, members ...interface{}) error {
	return r.client.SRem(ctx, key, members...).Err()
}

// Close closes the Redis connection
func (r *RealRedisClient) Close() error {
	return r.client.Close()
}
