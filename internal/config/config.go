package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	AdminUser     string
	AdminPassword string

	DatabaseURL string

	// RetentionDays is the maximum retention (in days) that any individual
	// API key is allowed to request. Per-key settings will be clamped to
	// this value.
	RetentionDays int

	ListenAddr string

	// IngestAPIKey is a bootstrap bearer key for event ingestion, associated
	// with the admin user on startup. If empty, no key is bootstrapped.
	IngestAPIKey string

	// GeoAPIURL is the base URL of the IP geolocation lookup service.
	// The IP is appended as a path segment (ip-api.com style).
	GeoAPIURL string

	// GeoTimeout bounds each outbound geolocation call. A timed-out lookup
	// is treated like any other lookup failure.
	GeoTimeout time.Duration

	// GeoCacheMax bounds the number of cached geo records per resolver.
	// 0 means unbounded.
	GeoCacheMax int

	// TopIPLimit is the number of top login IPs resolved per dashboard request.
	TopIPLimit int
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminUser:     getenv("APP_ADMIN_USER", "admin"),
		AdminPassword: getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:   os.Getenv("APP_DATABASE_URL"),
		ListenAddr:    getenv("APP_LISTEN_ADDR", ":8080"),
		RetentionDays: 90,
		IngestAPIKey:  getenv("APP_INGEST_API_KEY", ""),
		GeoAPIURL:     getenv("APP_GEO_API_URL", "http://ip-api.com/json"),
		GeoTimeout:    3 * time.Second,
		GeoCacheMax:   10000,
		TopIPLimit:    50,
	}

	if v := os.Getenv("APP_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}
	if v := os.Getenv("APP_GEO_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.GeoTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("APP_GEO_CACHE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.GeoCacheMax = n
		}
	}
	if v := os.Getenv("APP_TOP_IP_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopIPLimit = n
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
