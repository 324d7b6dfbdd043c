// Command weather-proxy runs the caching weather proxy.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/meshwx/weather-proxy/pkg/cache"
	"github.com/meshwx/weather-proxy/pkg/config"
	"github.com/meshwx/weather-proxy/pkg/logging"
	"github.com/meshwx/weather-proxy/pkg/proxy"
	"github.com/meshwx/weather-proxy/pkg/upstream"
	"github.com/meshwx/weather-proxy/pkg/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		logger := logging.NewLogger("main")
		logger.Fatal().Err(err).Msg("Configuration error")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	logger := logging.NewLogger("main")

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Cache backend unavailable")
	}

	sweeper := cache.NewSweeper(store, cfg.SweepInterval)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Cache sweeper failed to start")
	}
	defer sweeper.Stop()

	retry := upstream.RetryConfig{
		MaxAttempts:       cfg.MaxRetries + 1,
		InitialBackoff:    cfg.RetryBackoff,
		MaxBackoff:        10 * cfg.RetryBackoff,
		BackoffMultiplier: 2.0,
	}

	weatherClient := mustClient(logger, upstream.Config{
		Name: "weather", BaseURL: cfg.UpstreamBaseURL,
		Timeout: cfg.RequestTimeout, Retry: retry,
	})
	nodesClient := mustClient(logger, upstream.Config{
		Name: "nodes", BaseURL: cfg.NodesURL,
		Timeout: cfg.RequestTimeout, Retry: retry,
	})
	meteoClient := mustClient(logger, upstream.Config{
		Name: "openmeteo", BaseURL: cfg.OpenMeteoBaseURL,
		Timeout: cfg.RequestTimeout, Retry: retry,
	})

	var geocoder weather.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geocoder = weather.NewGoogleGeocoder(cfg.GeocoderAPIKey)
		logger.Info().Msg("City geocoding enabled on /api")
	}

	handler := proxy.NewHandler(proxy.Options{
		Store:    store,
		Weather:  weatherClient,
		Nodes:    nodesClient,
		Meteo:    weather.NewMeteo(meteoClient),
		Geocoder: geocoder,
		CacheTTL: cfg.CacheTTL,
	})

	srv := proxy.NewServer(":"+cfg.Port, handler.Routes(), cfg.ShutdownGrace)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server failed to start")
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("backend", cfg.CacheBackend).
		Dur("ttl", cfg.CacheTTL).
		Msg("Weather proxy started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info().Str("signal", s.String()).Msg("Shutting down")

	if err := srv.Stop(); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
		os.Exit(1)
	}
}

// newStore builds the configured cache backend. The redis backend is
// pinged once so a broken address fails at startup, not on first request.
func newStore(cfg *config.Config, logger zerolog.Logger) (cache.Store, error) {
	if cfg.CacheBackend == config.BackendRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		logger.Info().Str("addr", opts.Addr).Msg("Using Redis cache backend")
		return cache.NewRedisStore(client), nil
	}

	return cache.NewMemoryStore(cfg.CacheMaxEntries), nil
}

func mustClient(logger zerolog.Logger, cfg upstream.Config) *upstream.Client {
	client, err := upstream.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("upstream", cfg.Name).Msg("Invalid upstream configuration")
	}
	return client
}
