package ratelimit

import (
	"context"
	"time"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/cache"
)

// RedisStore keeps windows in Redis so replicas share one set of counters.
type RedisStore struct {
	cache *cache.Cache
	now   func() time.Time
}

// NewRedisStore creates a store backed by c.
func NewRedisStore(c *cache.Cache) *RedisStore {
	return &RedisStore{cache: c, now: time.Now}
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, p Policy, key string) (Decision, error) {
	res, err := s.cache.RateLimitCheck(ctx, string(p.Scope)+":"+key, int64(p.MaxRequests), p.Window)
	if err != nil {
		return Decision{}, err
	}
	remaining := p.MaxRequests - int(res.Count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   res.Allowed,
		Limit:     p.MaxRequests,
		Remaining: remaining,
		ResetAt:   s.now().Add(res.ResetIn),
	}, nil
}
