// Package api implements the health and stats endpoints and assembles the
// Hermes router.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/proxy"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/ratelimit"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/usage"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// LedgerReader summarizes recorded generation requests.
type LedgerReader interface {
	GetProviderSummary(ctx context.Context, from, to time.Time) ([]models.ProviderSummary, error)
}

// Handlers provides the read-only REST endpoints. None of them mutate the
// usage counters.
type Handlers struct {
	counter    *usage.Counter
	dispatcher *proxy.Dispatcher
	limiter    *ratelimit.Limiter
	ledger     LedgerReader
}

// NewHandlers creates a new Handlers instance. ledger may be nil.
func NewHandlers(counter *usage.Counter, dispatcher *proxy.Dispatcher, limiter *ratelimit.Limiter, ledger LedgerReader) *Handlers {
	return &Handlers{counter: counter, dispatcher: dispatcher, limiter: limiter, ledger: ledger}
}

// HealthCheck returns the service health status.
func (h *Handlers) HealthCheck(c *gin.Context) {
	snap := h.counter.Snapshot()
	uptime := int64(snap.Uptime / time.Second)

	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"service":       "hermes",
		"version":       Version,
		"uptime":        fmt.Sprintf("%d minutes", uptime/60),
		"uptimeSeconds": uptime,
		"startedAt":     snap.StartTime.UTC().Format(time.RFC3339),
		"usage":         snap,
		"providers":     h.providerFlags(),
	})
}

// GetStats returns usage counters, the rate-limit policy and provider flags.
func (h *Handlers) GetStats(c *gin.Context) {
	body := gin.H{
		"usage":     h.counter.Snapshot(),
		"rateLimit": h.rateLimitPolicy(),
		"providers": h.providerFlags(),
	}

	if h.ledger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		to := time.Now()
		summary, err := h.ledger.GetProviderSummary(ctx, to.Add(-24*time.Hour), to)
		if err != nil {
			log.Printf("api: ledger summary unavailable: %v", err)
		} else {
			body["ledger"] = gin.H{"window": "24h", "data": summary}
		}
	}

	c.JSON(http.StatusOK, body)
}

func (h *Handlers) providerFlags() map[string]string {
	flags := make(map[string]string, len(models.AllProviders))
	for _, p := range h.dispatcher.Providers() {
		status := "not configured"
		if p.APIKeyPresent {
			status = "configured"
		}
		flags[string(p.Name)] = status
	}
	return flags
}

func (h *Handlers) rateLimitPolicy() map[string]string {
	out := make(map[string]string, 2)
	for _, scope := range []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeAI} {
		if p, ok := h.limiter.Policy(scope); ok {
			out[string(scope)] = p.Describe()
		}
	}
	return out
}
