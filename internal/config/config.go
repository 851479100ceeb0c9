// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the Hermes AI relay.
type Config struct {
	// Server
	Port           string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string

	// Provider API Keys (read once, never logged)
	GeminiKey      string
	GroqKey        string
	HuggingFaceKey string

	// Gemini upstream
	GeminiModel   string
	GeminiBaseURL string

	// Rate limiting
	GlobalRateWindow  time.Duration
	GlobalRateMax     int
	AIRateWindow      time.Duration
	AIRateMax         int
	RateLimitBackend  string
	RateLimitFailOpen bool // If true, allow requests when Redis is unreachable

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// Request ledger (Postgres)
	LedgerEnabled bool
	DBHost        string
	DBPort        int
	DBName        string
	DBUser        string
	DBPassword    string
	DBSSLMode     string
}

// defaultOrigins are always allowed for local frontend development.
var defaultOrigins = []string{"http://localhost:3000", "https://localhost:3000"}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("HERMES_PORT", getEnv("PORT", "3001")),
		LogLevel: getEnv("HERMES_LOG_LEVEL", "info"),

		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		GroqKey:        os.Getenv("GROQ_API_KEY"),
		HuggingFaceKey: os.Getenv("HUGGINGFACE_API_KEY"),

		GeminiModel:   getEnv("HERMES_GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: strings.TrimRight(getEnv("HERMES_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),

		RateLimitBackend: strings.ToLower(getEnv("HERMES_RATE_LIMIT_BACKEND", BackendMemory)),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DBHost:     getEnv("POSTGRES_HOST", "localhost"),
		DBName:     getEnv("POSTGRES_DB", "opencloudops"),
		DBUser:     getEnv("POSTGRES_USER", "oco_user"),
		DBPassword: getEnv("POSTGRES_PASSWORD", ""),
		DBSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}

	cfg.AllowedOrigins = buildOrigins(os.Getenv("FRONTEND_URL"), os.Getenv("HERMES_ALLOWED_ORIGINS"))
	cfg.TrustedProxies = splitList(os.Getenv("HERMES_TRUSTED_PROXIES"))

	var err error
	if cfg.GlobalRateWindow, err = parseDuration("HERMES_GLOBAL_RATE_WINDOW", "15m"); err != nil {
		return nil, err
	}
	if cfg.GlobalRateMax, err = parseInt("HERMES_GLOBAL_RATE_MAX", "100"); err != nil {
		return nil, err
	}
	if cfg.AIRateWindow, err = parseDuration("HERMES_AI_RATE_WINDOW", "1m"); err != nil {
		return nil, err
	}
	if cfg.AIRateMax, err = parseInt("HERMES_AI_RATE_MAX", "15"); err != nil {
		return nil, err
	}
	if cfg.RedisPort, err = parseInt("REDIS_PORT", "6379"); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = parseInt("POSTGRES_PORT", "5432"); err != nil {
		return nil, err
	}
	if cfg.RateLimitFailOpen, err = parseBool("HERMES_RATE_LIMIT_FAIL_OPEN", "true"); err != nil {
		return nil, err
	}
	if cfg.LedgerEnabled, err = parseBool("HERMES_LEDGER_ENABLED", "false"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: HERMES_PORT is required")
	}
	if c.GlobalRateMax <= 0 || c.AIRateMax <= 0 {
		return fmt.Errorf("config: rate limit maximums must be positive")
	}
	if c.GlobalRateWindow <= 0 || c.AIRateWindow <= 0 {
		return fmt.Errorf("config: rate limit windows must be positive")
	}
	switch c.RateLimitBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("config: unknown HERMES_RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			continue
		}
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("config: allowed origin %q must start with http:// or https://", o)
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// RedactedDSN returns the DSN with the password masked for safe logging.
func (c *Config) RedactedDSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// RedisAddr returns the Redis address in host:port format.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// buildOrigins merges the default origins, FRONTEND_URL and any extra
// comma-separated origins, dropping blanks and duplicates.
func buildOrigins(frontendURL, extra string) []string {
	seen := make(map[string]bool)
	var origins []string
	add := func(o string) {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			return
		}
		seen[o] = true
		origins = append(origins, o)
	}
	for _, o := range defaultOrigins {
		add(o)
	}
	add(frontendURL)
	for _, o := range splitList(extra) {
		add(o)
	}
	return origins
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(key, fallback string) (int, error) {
	v, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseBool(key, fallback string) (bool, error) {
	v, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	v, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
