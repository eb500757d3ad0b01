package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devdata_fetch_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	fetchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devdata_fetch_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	fetchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devdata_fetch_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the delay per attempt. 1.0 keeps it fixed.
	BackoffMultiplier float64

	// Jitter randomizes each delay by ±Jitter (0.2 = ±20%). Zero disables it.
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration: three attempts
// ten seconds apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Second,
		MaxBackoff:        0,
		BackoffMultiplier: 1.0,
		Jitter:            0,
	}
}

// Validate checks the retry configuration.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initial_backoff must not be negative")
	}
	if c.BackoffMultiplier != 0 && c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1 (got %g)", c.BackoffMultiplier)
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0, 1) (got %g)", c.Jitter)
	}
	return nil
}

// backoff returns the delay to wait after the given failed attempt (1-based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	mult := c.BackoffMultiplier
	if mult == 0 {
		mult = 1
	}
	d := float64(c.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if c.Jitter > 0 {
		d *= 1 - c.Jitter + rand.Float64()*2*c.Jitter
	}
	return time.Duration(d)
}

// retryWithBackoff runs fn until it succeeds, fails with a class that is not
// retried, or MaxAttempts is reached. fn receives the 1-based attempt number.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func(attempt int) error) error {
	var lastErr *FetchError

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{ErrorClass: ErrorClassOther, Err: err}
		}
		fe.Attempts = attempt
		lastErr = fe

		if !shouldRetry(fe.ErrorClass) {
			return fe
		}

		if attempt >= config.MaxAttempts {
			break
		}

		errorClass := string(fe.ErrorClass)
		fetchRetriesTotal.WithLabelValues(errorClass).Inc()

		delay := config.backoff(attempt)
		fetchRetryBackoffSeconds.WithLabelValues(errorClass).Observe(delay.Seconds())

		logger.Warn().
			Err(fe.Err).
			Str("url", fe.URL).
			Str("error_class", errorClass).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Request failed, retrying after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", errorClass).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return &FetchError{
				URL:        fe.URL,
				ErrorClass: ErrorClassOther,
				Attempts:   attempt,
				Err:        fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err()),
			}
		case <-timer.C:
		}
	}

	fetchRetryExhaustedTotal.WithLabelValues(string(lastErr.ErrorClass)).Inc()
	logger.Warn().
		Str("url", lastErr.URL).
		Str("error_class", string(lastErr.ErrorClass)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return &FetchError{
		URL:        lastErr.URL,
		ErrorClass: lastErr.ErrorClass,
		Attempts:   lastErr.Attempts,
		Message:    fmt.Sprintf("giving up after %d attempts", lastErr.Attempts),
		Err:        fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr.Err),
	}
}
