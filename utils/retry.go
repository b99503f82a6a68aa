package utils

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"context"
)

type BackoffType int

const (
	Linear BackoffType = iota
	Exponential
	ExponentialJitter
	Fixed
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
	BackoffType BackoffType
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		BackoffType: ExponentialJitter,
	}
}

// PermanentError marks a failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Retry runs operation up to MaxAttempts times, sleeping between attempts
// according to the configured backoff. When an attempt fails with a
// RateLimitedError, the server-provided Retry-After hint overrides the
// computed delay if it is larger. A PermanentError aborts immediately.
func Retry(ctx context.Context, config *RetryConfig, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := CalculateDelay(config, attempt)

			var rateLimited *RateLimitedError
			if errors.As(lastErr, &rateLimited) {
				hinted := time.Duration(rateLimited.RetryAfter * float64(time.Second))
				if hinted > delay {
					delay = hinted
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := operation()
		if err == nil {
			return nil
		}

		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}

		lastErr = err
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

func CalculateDelay(config *RetryConfig, attempt int) time.Duration {
	var delay time.Duration

	switch config.BackoffType {
	case Linear:
		delay = config.BaseDelay * time.Duration(attempt)
	case Exponential:
		delay = time.Duration(float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
	case ExponentialJitter:
		baseDelay := time.Duration(float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
		if config.Jitter {
			jitter := time.Duration(rand.Float64() * float64(baseDelay) * 0.1)
			delay = baseDelay + jitter
		} else {
			delay = baseDelay
		}
	case Fixed:
		delay = config.BaseDelay
	default:
		delay = config.BaseDelay
	}

	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	return delay
}
