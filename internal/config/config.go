// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything cmd/server needs to wire the service.
type Config struct {
	// HTTP server
	Port           string
	AllowedOrigins []string

	// Budgeting provider
	ProviderBaseURL string
	BudgetID        string

	// Persistence
	UseMemoryStore bool
	GCPProject     string

	// Auth
	SkipAuth bool

	// Query cache
	CacheFreshTTL    time.Duration
	CacheRetainTTL   time.Duration
	CacheNegativeTTL time.Duration

	// Logging
	LogLevel slog.Level
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8111"),
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS", "http://localhost:1234"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.ynab.com/v1"),
		BudgetID:        getEnv("PROVIDER_BUDGET_ID", "last-used"),

		UseMemoryStore: getEnvBool("USE_MEMORY_STORE", false) || getEnv("ENV", "") == "local",
		GCPProject:     getEnv("GOOGLE_CLOUD_PROJECT", ""),

		SkipAuth: getEnvBool("SKIP_AUTH", false),

		CacheFreshTTL:    getEnvDuration("CACHE_FRESH_TTL", 60*time.Minute),
		CacheRetainTTL:   getEnvDuration("CACHE_RETAIN_TTL", 120*time.Minute),
		CacheNegativeTTL: getEnvDuration("CACHE_NEGATIVE_TTL", 5*time.Second),

		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate rejects configurations that cannot possibly work.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.ProviderBaseURL == "" {
		problems = append(problems, "provider base URL cannot be empty")
	} else if u, err := url.Parse(c.ProviderBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		problems = append(problems, fmt.Sprintf("invalid provider base URL %q", c.ProviderBaseURL))
	}

	if !c.UseMemoryStore && c.GCPProject == "" {
		problems = append(problems, "GOOGLE_CLOUD_PROJECT is required unless USE_MEMORY_STORE is set")
	}

	if c.CacheFreshTTL <= 0 || c.CacheRetainTTL <= 0 {
		problems = append(problems, "cache TTLs must be positive")
	}
	if c.CacheRetainTTL < c.CacheFreshTTL {
		problems = append(problems, "cache retention must be at least the freshness window")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
