package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/cache"
)

var (
	testGlobal = Policy{Scope: ScopeGlobal, Window: 15 * time.Minute, MaxRequests: 100, Message: "global"}
	testAI     = Policy{Scope: ScopeAI, Window: time.Minute, MaxRequests: 3, Message: "ai"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemoryLimiter() (*Limiter, *MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	return NewLimiter(store, testGlobal, testAI), store, clock
}

func TestMemory_AllowsUpToMaxThenRejects(t *testing.T) {
	l, _, _ := newMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < testAI.MaxRequests; i++ {
		d, err := l.Allow(ctx, ScopeAI, "10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != testAI.MaxRequests-i-1 {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, testAI.MaxRequests-i-1, d.Remaining)
		}
	}

	d, err := l.Allow(ctx, ScopeAI, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Error("request over the limit should be rejected")
	}
	if d.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", d.Remaining)
	}
}

func TestMemory_WindowResets(t *testing.T) {
	l, _, clock := newMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < testAI.MaxRequests; i++ {
		l.Allow(ctx, ScopeAI, "10.0.0.1")
	}
	if d, _ := l.Allow(ctx, ScopeAI, "10.0.0.1"); d.Allowed {
		t.Fatal("expected rejection inside the window")
	}

	clock.Advance(testAI.Window)

	d, _ := l.Allow(ctx, ScopeAI, "10.0.0.1")
	if !d.Allowed {
		t.Fatal("expected acceptance after the window elapsed")
	}
	if d.Remaining != testAI.MaxRequests-1 {
		t.Errorf("expected a fresh window, remaining %d", d.Remaining)
	}
}

func TestMemory_RejectionDoesNotExtendWindow(t *testing.T) {
	l, _, clock := newMemoryLimiter()
	ctx := context.Background()

	first, _ := l.Allow(ctx, ScopeAI, "k")
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		l.Allow(ctx, ScopeAI, "k")
	}
	last, _ := l.Allow(ctx, ScopeAI, "k")
	if !first.ResetAt.Equal(last.ResetAt) {
		t.Errorf("window reset moved from %v to %v", first.ResetAt, last.ResetAt)
	}
}

func TestMemory_ScopesAndKeysAreIndependent(t *testing.T) {
	l, _, _ := newMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < testAI.MaxRequests; i++ {
		l.Allow(ctx, ScopeAI, "a")
	}

	if d, _ := l.Allow(ctx, ScopeAI, "b"); !d.Allowed {
		t.Error("another client should have its own AI window")
	}
	if d, _ := l.Allow(ctx, ScopeGlobal, "a"); !d.Allowed {
		t.Error("the global window should not be affected by the AI window")
	}
}

func TestMemory_Concurrent(t *testing.T) {
	l, _, _ := newMemoryLimiter()
	ctx := context.Background()

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := l.Allow(ctx, ScopeGlobal, "shared"); d.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	if allowed != int64(testGlobal.MaxRequests) {
		t.Errorf("expected exactly %d admissions, got %d", testGlobal.MaxRequests, allowed)
	}
}

func TestMemory_Sweep(t *testing.T) {
	l, store, clock := newMemoryLimiter()
	ctx := context.Background()

	l.Allow(ctx, ScopeAI, "a")
	l.Allow(ctx, ScopeGlobal, "a")
	clock.Advance(2 * time.Minute)
	l.Allow(ctx, ScopeAI, "b")

	removed := store.Sweep(testGlobal, testAI)
	if removed != 1 {
		t.Errorf("expected 1 expired window removed, got %d", removed)
	}
	if store.windows(ScopeAI) != 1 {
		t.Errorf("expected 1 live AI window, got %d", store.windows(ScopeAI))
	}
	if store.windows(ScopeGlobal) != 1 {
		t.Errorf("expected the global window to survive, got %d", store.windows(ScopeGlobal))
	}
}

func TestAllow_UnknownScope(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), testAI)
	if _, err := l.Allow(context.Background(), ScopeGlobal, "k"); err == nil {
		t.Error("expected error for unconfigured scope")
	}
}

func TestPolicyDescribe(t *testing.T) {
	tests := []struct {
		policy   Policy
		expected string
	}{
		{Policy{Window: 15 * time.Minute, MaxRequests: 100}, "100 requests per 15 minutes"},
		{Policy{Window: time.Minute, MaxRequests: 15}, "15 requests per minute"},
		{Policy{Window: time.Hour, MaxRequests: 5}, "5 requests per hour"},
		{Policy{Window: 30 * time.Second, MaxRequests: 2}, "2 requests per 30 seconds"},
		{Policy{Window: 1500 * time.Millisecond, MaxRequests: 1}, "1 requests per 1.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.policy.Describe(); got != tt.expected {
				t.Errorf("Describe() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDecisionRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		resetAt  time.Time
		expected time.Duration
	}{
		{"rounds up", now.Add(1500 * time.Millisecond), 2 * time.Second},
		{"exact", now.Add(30 * time.Second), 30 * time.Second},
		{"past", now.Add(-time.Second), time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decision{ResetAt: tt.resetAt}
			if got := d.RetryAfter(now); got != tt.expected {
				t.Errorf("RetryAfter() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRedisStore_MatchesMemorySequence(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	redisLimiter := NewLimiter(NewRedisStore(cache.New(client)), testGlobal, testAI)
	memLimiter, _, _ := newMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < testAI.MaxRequests+2; i++ {
		rd, err := redisLimiter.Allow(ctx, ScopeAI, "10.0.0.9")
		require.NoError(t, err)
		md, err := memLimiter.Allow(ctx, ScopeAI, "10.0.0.9")
		require.NoError(t, err)

		assert.Equal(t, md.Allowed, rd.Allowed, "request %d", i+1)
		assert.Equal(t, md.Remaining, rd.Remaining, "request %d", i+1)
		assert.Equal(t, testAI.MaxRequests, rd.Limit)
	}
}

func TestRedisStore_WindowExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewLimiter(NewRedisStore(cache.New(client)), testAI)
	ctx := context.Background()

	for i := 0; i < testAI.MaxRequests; i++ {
		d, err := l.Allow(ctx, ScopeAI, "k")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, ScopeAI, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.ResetAt.IsZero())

	mr.FastForward(testAI.Window)

	d, err = l.Allow(ctx, ScopeAI, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
