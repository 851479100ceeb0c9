package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/api"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/config"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/database"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/proxy"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/ratelimit"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/usage"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/pkg/cache"
)

const (
	globalLimitMessage = "Too many requests, please try again later."
	aiLimitMessage     = "AI rate limit exceeded, please wait."
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  Hermes - Open Cloud Ops AI Relay")
	fmt.Println("==============================================")

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	fmt.Printf("Starting server on port %s...\n", cfg.Port)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Optional request ledger.
	var (
		recorder proxy.RequestRecorder
		reader   api.LedgerReader
	)
	if cfg.LedgerEnabled {
		db, err := database.New(cfg.DSN())
		if err != nil {
			log.Printf("WARNING: Ledger database unavailable at %s (%v). Running in relay-only mode.", cfg.RedactedDSN(), err)
		} else {
			defer db.Close()
			ctx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
			err := db.Migrate(ctx)
			cancel()
			if err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
			recorder, reader = db, db
			log.Println("Ledger database connected and migrations applied.")
		}
	}

	// Rate limiting.
	policies := []ratelimit.Policy{
		{Scope: ratelimit.ScopeGlobal, Window: cfg.GlobalRateWindow, MaxRequests: cfg.GlobalRateMax, Message: globalLimitMessage},
		{Scope: ratelimit.ScopeAI, Window: cfg.AIRateWindow, MaxRequests: cfg.AIRateMax, Message: aiLimitMessage},
	}
	var store ratelimit.Store
	if cfg.RateLimitBackend == config.BackendRedis {
		ctx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		c, err := cache.NewCache(ctx, cfg.RedisAddr(), cfg.RedisPassword)
		cancel()
		if err != nil {
			log.Printf("WARNING: Redis unavailable (%v). Falling back to in-memory rate limiting.", err)
		} else {
			defer c.Close()
			store = ratelimit.NewRedisStore(c)
			log.Println("Redis connected; rate limits are shared across replicas.")
		}
	}
	if store == nil {
		mem := ratelimit.NewMemoryStore()
		mem.StartJanitor(rootCtx, time.Minute, policies...)
		store = mem
	}
	limiter := ratelimit.NewLimiter(store, policies...)

	// Initialize components.
	counter := usage.NewCounter()
	dispatcher := proxy.NewDispatcher(cfg, counter, &http.Client{})
	proxyHandler := proxy.NewProxyHandler(dispatcher, counter, recorder)
	apiHandlers := api.NewHandlers(counter, dispatcher, limiter, reader)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(cfg, apiHandlers, proxyHandler, limiter, counter)

	for _, p := range dispatcher.Providers() {
		switch {
		case !p.APIKeyPresent:
			log.Printf("Provider %s: not configured", p.Name)
		case !p.Implemented:
			log.Printf("Provider %s: configured (not implemented yet)", p.Name)
		default:
			log.Printf("Provider %s: configured", p.Name)
		}
	}

	// Start HTTP server with graceful shutdown.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Hermes AI relay is ready on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited.")
}
