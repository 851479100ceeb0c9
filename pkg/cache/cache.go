// Package cache provides a Redis client wrapper used to share rate-limit
// windows between Hermes replicas.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client with Hermes-specific operations.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new Redis cache client connected to the given address.
// The addr should be in "host:port" format.
func NewCache(ctx context.Context, addr, password string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	// Verify connectivity
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: failed to connect to Redis at %s: %w", addr, err)
	}

	log.Printf("cache: connected to Redis at %s", addr)
	return New(client), nil
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Close gracefully shuts down the Redis client connection.
func (c *Cache) Close() error {
	if c.client != nil {
		log.Println("cache: closing Redis connection")
		return c.client.Close()
	}
	return nil
}

// RateLimitResult reports the state of a fixed window after a check.
type RateLimitResult struct {
	Allowed bool
	Count   int64
	ResetIn time.Duration
}

// rateLimitLua checks the window count and increments it only when the
// request is admitted. The TTL is set once, on the first admitted request,
// so later requests never extend the window.
var rateLimitLua = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	if current >= tonumber(ARGV[2]) then
		return {current, redis.call('PTTL', KEYS[1]), 0}
	end
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return {count, redis.call('PTTL', KEYS[1]), 1}
`)

// RateLimitCheck performs a fixed-window rate limit check for a given key.
func (c *Cache) RateLimitCheck(ctx context.Context, key string, maxRequests int64, window time.Duration) (RateLimitResult, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	vals, err := rateLimitLua.Run(ctx, c.client, []string{rateLimitKey}, window.Milliseconds(), maxRequests).Int64Slice()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("cache: rate limit check: %w", err)
	}
	if len(vals) != 3 {
		return RateLimitResult{}, fmt.Errorf("cache: unexpected rate limit reply length %d", len(vals))
	}

	resetIn := time.Duration(vals[1]) * time.Millisecond
	if resetIn < 0 {
		resetIn = window
	}
	return RateLimitResult{
		Allowed: vals[2] == 1,
		Count:   vals[0],
		ResetIn: resetIn,
	}, nil
}
