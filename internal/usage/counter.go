// Package usage tracks process-wide request counters for the health and stats
// endpoints. Counters live in memory and reset when the process restarts.
package usage

import (
	"sync"
	"time"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/models"
)

// Counter records total requests, distinct client identifiers and errors.
// All methods are safe for concurrent use.
type Counter struct {
	mu            sync.Mutex
	totalRequests int64
	errors        int64
	clients       map[string]struct{}
	startTime     time.Time
	now           func() time.Time
}

// NewCounter creates a Counter whose uptime starts now.
func NewCounter() *Counter {
	return newCounterAt(time.Now)
}

func newCounterAt(now func() time.Time) *Counter {
	return &Counter{
		clients:   make(map[string]struct{}),
		startTime: now(),
		now:       now,
	}
}

// Record counts one inbound request from clientID. The client set never shrinks.
func (c *Counter) Record(clientID string) {
	c.mu.Lock()
	c.totalRequests++
	c.clients[clientID] = struct{}{}
	c.mu.Unlock()
}

// RecordError counts one failed request.
func (c *Counter) RecordError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters and the current uptime.
func (c *Counter) Snapshot() models.UsageSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.UsageSnapshot{
		TotalRequests: c.totalRequests,
		ActiveIPs:     len(c.clients),
		Errors:        c.errors,
		StartTime:     c.startTime,
		Uptime:        c.now().Sub(c.startTime),
	}
}
