// Package config reads the process configuration from the environment
// once at startup. The resulting Config is immutable; components receive
// it fully populated and never consult the environment themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Cache backend selectors.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the full proxy configuration.
type Config struct {
	// Port is the inbound listen port.
	Port string `validate:"required,numeric"`

	// UpstreamBaseURL is the weather provider behind /weather.
	UpstreamBaseURL string `validate:"required,url"`

	// NodesURL is the node feed behind /nodes.
	NodesURL string `validate:"required,url"`

	// OpenMeteoBaseURL is the reference-conditions provider used by /api.
	OpenMeteoBaseURL string `validate:"required,url"`

	// CacheTTL is the default TTL for cached upstream payloads.
	CacheTTL time.Duration `validate:"gt=0"`

	// CacheMaxEntries bounds the in-memory cache.
	CacheMaxEntries int `validate:"gt=0"`

	// CacheBackend selects the cache store implementation.
	CacheBackend string `validate:"oneof=memory redis"`

	// RedisURL is the Redis address, required for the redis backend.
	RedisURL string `validate:"required_if=CacheBackend redis"`

	// RequestTimeout bounds each outbound upstream fetch.
	RequestTimeout time.Duration `validate:"gt=0"`

	// MaxRetries is the number of retries after the initial attempt,
	// applied only to transient network failures.
	MaxRetries int `validate:"gte=0,lte=10"`

	// RetryBackoff is the initial backoff between retries.
	RetryBackoff time.Duration `validate:"gt=0"`

	// SweepInterval is how often expired cache entries are reclaimed.
	SweepInterval time.Duration `validate:"gt=0"`

	// ShutdownGrace is how long in-flight requests may finish on stop.
	ShutdownGrace time.Duration `validate:"gt=0"`

	// LogLevel is the minimum level: debug, info, warn, error.
	LogLevel string

	// LogPretty enables human-readable console logs.
	LogPretty bool

	// GeocoderAPIKey enables city lookups on /api when set.
	GeocoderAPIKey string
}

var validate = validator.New()

// Load reads configuration from the environment with sensible defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg := &Config{
		Port:             getenvDefault("PORT", "8080"),
		UpstreamBaseURL:  getenvDefault("UPSTREAM_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		NodesURL:         getenvDefault("NODES_URL", "https://api.bolte.lol/nodes"),
		OpenMeteoBaseURL: getenvDefault("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		CacheMaxEntries:  getenvInt("CACHE_MAX_ENTRIES", 1024),
		CacheBackend:     getenvDefault("CACHE_BACKEND", BackendMemory),
		RedisURL:         os.Getenv("REDIS_URL"),
		MaxRetries:       getenvInt("MAX_RETRIES", 2),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		LogPretty:        getenvBool("LOG_PRETTY", false),
		GeocoderAPIKey:   os.Getenv("GEOCODER_API_KEY"),
	}

	var err error
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = getenvDuration("RETRY_BACKOFF", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace, err = getenvDuration("SHUTDOWN_GRACE", 10*time.Second); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
