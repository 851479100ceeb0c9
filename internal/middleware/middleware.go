// Package middleware provides Gin middleware functions for the Hermes AI relay.
// It includes origin filtering, security headers, request logging, rate
// limiting and panic recovery.
package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/ratelimit"
	"github.com/bigdegenenergy/open-cloud-ops/hermes/internal/usage"
)

// OriginGuard rejects requests whose Origin header is not in allowedOrigins.
// Requests without an Origin header (curl, server-to-server) pass through.
// It runs before the CORS handler so rejected origins never reach a route.
func OriginGuard(allowedOrigins []string, counter *usage.Counter) gin.HandlerFunc {
	originsMap := make(map[string]bool)
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		originsMap[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" || allowAll || originsMap[origin] {
			c.Next()
			return
		}

		counter.RecordError()
		log.Printf("[WARN]  rejected origin %q for %s %s", origin, c.Request.Method, c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not allowed by CORS"})
	}
}

// securityHeaders is the browser hardening set sent on every response.
var securityHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'self';base-uri 'self';font-src 'self' https: data:;form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';upgrade-insecure-requests"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Origin-Agent-Cluster", "?1"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Download-Options", "noopen"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"X-XSS-Protection", "0"},
}

// SecurityHeaders sets the security response headers before the request is
// handled, so error responses written further down the chain carry them too.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		c.Next()
	}
}

// LoggingMiddleware returns a Gin middleware handler that logs request and
// response metadata including method, path, status code, latency, and client IP.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process the request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		bodySize := c.Writer.Size()
		reqID := c.Writer.Header().Get("X-Request-ID")

		if query != "" {
			path = path + "?" + query
		}
		if reqID == "" {
			reqID = "-"
		}

		switch {
		case statusCode >= 500:
			log.Printf("[ERROR] %s %s | %d | %v | %s | %d bytes | %s",
				method, path, statusCode, latency, clientIP, bodySize, reqID)
		case statusCode >= 400:
			log.Printf("[WARN]  %s %s | %d | %v | %s | %d bytes | %s",
				method, path, statusCode, latency, clientIP, bodySize, reqID)
		default:
			log.Printf("[INFO]  %s %s | %d | %v | %s | %d bytes | %s",
				method, path, statusCode, latency, clientIP, bodySize, reqID)
		}
	}
}

// RateLimitMiddleware enforces the limiter's policy for scope, keyed by client
// IP. Rejected requests get a 429 with the policy message and count as errors.
// When the store fails, the request is allowed if failOpen is set and
// rejected with 503 otherwise. It panics if the limiter has no policy for
// scope.
func RateLimitMiddleware(limiter *ratelimit.Limiter, scope ratelimit.Scope, counter *usage.Counter, failOpen bool) gin.HandlerFunc {
	policy, ok := limiter.Policy(scope)
	if !ok {
		panic(fmt.Sprintf("middleware: no rate limit policy for scope %q", scope))
	}

	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), scope, c.ClientIP())
		if err != nil {
			log.Printf("middleware: %s rate limit check error: %v", scope, err)
			if failOpen {
				c.Next()
				return
			}
			counter.RecordError()
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			return
		}

		now := time.Now()
		retryAfter := decision.RetryAfter(now)
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(retryAfter/time.Second)))

		if !decision.Allowed {
			counter.RecordError()
			c.Header("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": policy.Message})
			return
		}

		c.Next()
	}
}

// RecoveryMiddleware returns a Gin middleware that recovers from panics
// and returns a 500 error instead of crashing the server.
func RecoveryMiddleware(counter *usage.Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] recovered from panic: %v", err)
				counter.RecordError()
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
		}()
		c.Next()
	}
}

// NotFound answers every unmatched route.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
}
