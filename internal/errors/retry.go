package errors

import (
	"context"
	"math/rand"
	"time"

	"reagent/internal/logging"
)

// RetryConfig controls the exponential backoff schedule.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryConfig matches the tool hub defaults: two retries after the
// first attempt, 0.5s base doubling up to a 5s cap, with 20% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0.2,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	return c
}

// RetryWithResult runs fn up to cfg.MaxAttempts times, sleeping the backoff
// schedule between attempts. Permanent errors and context cancellation stop
// the loop immediately; the last error is returned when attempts run out.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, logger logging.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	logger = logging.OrNop(logger)
	cfg = cfg.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			logger.Debug("%s: non-retryable error on attempt %d: %v", op, attempt+1, err)
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.backoff(attempt, err)
		logger.Warn("%s: attempt %d/%d failed (%v), retrying in %s", op, attempt+1, cfg.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}

// Retry is RetryWithResult for operations without a return value.
func Retry(ctx context.Context, cfg RetryConfig, logger logging.Logger, op string, fn func(ctx context.Context) error) error {
	_, err := RetryWithResult(ctx, cfg, logger, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (c RetryConfig) backoff(attempt int, err error) time.Duration {
	var te *TransientError
	if As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter
	}

	delay := c.BaseDelay << attempt
	if delay > c.MaxDelay || delay <= 0 {
		delay = c.MaxDelay
	}
	if c.JitterFactor > 0 {
		jitter := (rand.Float64()*2 - 1) * c.JitterFactor * float64(delay)
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}
