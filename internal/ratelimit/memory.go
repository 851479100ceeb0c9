package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// windowTable holds the windows of a single scope behind its own lock.
type windowTable struct {
	mu      sync.Mutex
	entries map[string]*window
}

// MemoryStore keeps windows in process memory. It is the default backend
// for a single replica.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[Scope]*windowTable
	now    func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[Scope]*windowTable),
		now:    time.Now,
	}
}

func (s *MemoryStore) table(scope Scope) *windowTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[scope]
	if !ok {
		t = &windowTable{entries: make(map[string]*window)}
		s.tables[scope] = t
	}
	return t
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, p Policy, key string) (Decision, error) {
	now := s.now()
	t := s.table(p.Scope)

	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.entries[key]
	if !ok || !now.Before(w.start.Add(p.Window)) {
		w = &window{start: now}
		t.entries[key] = w
	}

	d := Decision{
		Limit:   p.MaxRequests,
		ResetAt: w.start.Add(p.Window),
	}
	if w.count < p.MaxRequests {
		w.count++
		d.Allowed = true
	}
	d.Remaining = p.MaxRequests - w.count
	return d, nil
}

// Sweep drops windows that have expired under their policy and returns the
// number removed.
func (s *MemoryStore) Sweep(policies ...Policy) int {
	now := s.now()
	removed := 0
	for _, p := range policies {
		t := s.table(p.Scope)
		t.mu.Lock()
		for key, w := range t.entries {
			if !now.Before(w.start.Add(p.Window)) {
				delete(t.entries, key)
				removed++
			}
		}
		t.mu.Unlock()
	}
	return removed
}

// windows returns the number of windows held for scope.
func (s *MemoryStore) windows(scope Scope) int {
	t := s.table(scope)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// StartJanitor sweeps expired windows every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration, policies ...Policy) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(policies...); n > 0 {
					log.Printf("ratelimit: swept %d expired windows", n)
				}
			}
		}
	}()
}
