package upstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for the bounded retry policy.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration:
// one initial attempt plus up to two retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff as a bounded loop
// with an explicit attempt counter. Only transport-class failures are
// retried; every other error kind returns immediately. Jitter spreads
// retries out, and context cancellation aborts any backoff wait.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Upstream request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		kind := KindOf(err)
		if !shouldRetry(kind) {
			return lastErr
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		upstreamRetriesTotal.WithLabelValues(string(kind)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		logger.Warn().
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Err(err).
			Msg("Retrying upstream request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	upstreamRetryExhaustedTotal.Inc()
	logger.Warn().
		Int("max_attempts", cfg.MaxAttempts).
		Err(lastErr).
		Msg("Upstream retry attempts exhausted")

	return errors.Join(ErrRetryExhausted, lastErr)
}
