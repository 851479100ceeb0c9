package usage

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRecord_DistinctClients(t *testing.T) {
	c := NewCounter()

	c.Record("10.0.0.1")
	c.Record("10.0.0.1")
	c.Record("10.0.0.2")

	snap := c.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("expected 3 total requests, got %d", snap.TotalRequests)
	}
	if snap.ActiveIPs != 2 {
		t.Errorf("expected 2 active IPs, got %d", snap.ActiveIPs)
	}
	if snap.Errors != 0 {
		t.Errorf("expected 0 errors, got %d", snap.Errors)
	}
}

func TestRecordError(t *testing.T) {
	c := NewCounter()
	c.RecordError()
	c.RecordError()

	snap := c.Snapshot()
	if snap.Errors != 2 {
		t.Errorf("expected 2 errors, got %d", snap.Errors)
	}
	if snap.TotalRequests != 0 {
		t.Errorf("errors must not count as requests, got %d", snap.TotalRequests)
	}
}

func TestSnapshot_Uptime(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	c := newCounterAt(func() time.Time { return now })

	now = start.Add(7 * time.Minute)
	snap := c.Snapshot()
	if snap.Uptime != 7*time.Minute {
		t.Errorf("expected uptime 7m, got %v", snap.Uptime)
	}
	if !snap.StartTime.Equal(start) {
		t.Errorf("expected start %v, got %v", start, snap.StartTime)
	}
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter()
	const workers, perWorker = 20, 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Record(fmt.Sprintf("client-%d", id))
				c.RecordError()
			}
		}(w)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.TotalRequests != workers*perWorker {
		t.Errorf("expected %d requests, got %d", workers*perWorker, snap.TotalRequests)
	}
	if snap.Errors != workers*perWorker {
		t.Errorf("expected %d errors, got %d", workers*perWorker, snap.Errors)
	}
	if snap.ActiveIPs != workers {
		t.Errorf("expected %d active IPs, got %d", workers, snap.ActiveIPs)
	}
}
