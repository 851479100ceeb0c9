// Package ratelimit implements the fixed-window request ceilings applied to
// the AI endpoints.
//
// Two scopes exist: a global window shared by every route that is rate
// limited, and a stricter AI window. Each scope keeps one counter per client
// identifier. A window starts on the first admitted request and its count
// resets once the window duration has elapsed. Fixed windows let a burst
// straddle a boundary; that is acceptable for abuse deterrence.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Scope names an independent rate-limit window table.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeAI     Scope = "ai"
)

// Policy is the ceiling applied to one scope.
type Policy struct {
	Scope       Scope
	Window      time.Duration
	MaxRequests int
	Message     string
}

// Describe renders the policy for the stats endpoint, e.g.
// "100 requests per 15 minutes".
func (p Policy) Describe() string {
	return fmt.Sprintf("%d requests per %s", p.MaxRequests, describeWindow(p.Window))
}

func describeWindow(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	case d%time.Second == 0:
		return plural(int64(d/time.Second), "second")
	default:
		return d.String()
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Decision is the outcome of a single check-and-consume call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left until the window resets, rounded up to
// whole seconds and never below one second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return ((wait + time.Second - 1) / time.Second) * time.Second
}

// Store keeps window counters for every scope.
type Store interface {
	// Take admits one request for key under p if the window has room.
	Take(ctx context.Context, p Policy, key string) (Decision, error)
}

// Limiter applies the configured policies through a Store.
type Limiter struct {
	store    Store
	policies map[Scope]Policy
}

// NewLimiter creates a Limiter for the given policies.
func NewLimiter(store Store, policies ...Policy) *Limiter {
	l := &Limiter{store: store, policies: make(map[Scope]Policy, len(policies))}
	for _, p := range policies {
		l.policies[p.Scope] = p
	}
	return l
}

// Policy returns the policy configured for scope.
func (l *Limiter) Policy(scope Scope) (Policy, bool) {
	p, ok := l.policies[scope]
	return p, ok
}

// Allow checks and consumes one request for key in scope.
func (l *Limiter) Allow(ctx context.Context, scope Scope, key string) (Decision, error) {
	p, ok := l.policies[scope]
	if !ok {
		return Decision{}, fmt.Errorf("ratelimit: unknown scope %q", scope)
	}
	return l.store.Take(ctx, p, key)
}
