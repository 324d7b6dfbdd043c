package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.UpstreamBaseURL)
	assert.Equal(t, "https://api.bolte.lol/nodes", cfg.NodesURL)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1024, cfg.CacheMaxEntries)
	assert.Equal(t, BackendMemory, cfg.CacheBackend)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "80")
	t.Setenv("UPSTREAM_BASE_URL", "https://wttr.example.com/v1")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CACHE_MAX_ENTRIES", "64")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "80", cfg.Port)
	assert.Equal(t, "https://wttr.example.com/v1", cfg.UpstreamBaseURL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 64, cfg.CacheMaxEntries)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.True(t, cfg.LogPretty)
}

func TestLoad_RedisBackendRequiresURL(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")

	_, err := Load()
	require.Error(t, err, "redis backend without REDIS_URL must be rejected")

	t.Setenv("REDIS_URL", "localhost:6379")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.CacheBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad ttl", key: "CACHE_TTL", value: "five minutes"},
		{name: "bad timeout", key: "REQUEST_TIMEOUT", value: "-3s"},
		{name: "bad backend", key: "CACHE_BACKEND", value: "disk"},
		{name: "bad upstream url", key: "UPSTREAM_BASE_URL", value: "not a url"},
		{name: "bad port", key: "PORT", value: "eight-thousand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
