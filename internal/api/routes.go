package api

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/config"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/middleware"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/proxy"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/ratelimit"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/usage"
)

// NewRouter wires middleware and routes onto a fresh Gin engine.
func NewRouter(cfg *config.Config, h *Handlers, proxyHandler *proxy.ProxyHandler, limiter *ratelimit.Limiter, counter *usage.Counter) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Printf("WARNING: invalid HERMES_TRUSTED_PROXIES (%v); forwarded headers are ignored.", err)
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(middleware.RecoveryMiddleware(counter))
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.OriginGuard(cfg.AllowedOrigins, counter))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Latency-Ms", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", h.HealthCheck)
	r.GET("/api/stats", h.GetStats)

	// Global window first, then the AI window; both must pass.
	ai := r.Group("/api/ai")
	ai.Use(middleware.RateLimitMiddleware(limiter, ratelimit.ScopeGlobal, counter, cfg.RateLimitFailOpen))
	ai.Use(middleware.RateLimitMiddleware(limiter, ratelimit.ScopeAI, counter, cfg.RateLimitFailOpen))
	{
		ai.POST("/gemini", proxyHandler.HandleGemini)
		ai.POST("/groq", proxyHandler.HandleGroq)
		ai.POST("/huggingface", proxyHandler.HandleHuggingFace)
	}

	r.NoRoute(middleware.NotFound)

	return r
}
