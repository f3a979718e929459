package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/rs/zerolog/log"
)

// RetryConfig configures retry behavior for exchange requests
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
	RateLimitWait  time.Duration // Wait applied on 429-class responses
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		RateLimitWait:  2 * time.Second,
	}
}

// Binance error codes that indicate throttling
const (
	codeTooManyRequests = -1003
	codeIPBanned        = -1015
)

// IsRateLimited reports whether the error is a 429-equivalent response
func IsRateLimited(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == codeTooManyRequests || apiErr.Code == codeIPBanned
	}
	return strings.Contains(err.Error(), "too many requests") ||
		strings.Contains(err.Error(), "429")
}

// IsRetryable checks if an error is worth retrying (5xx, timeouts, throttling)
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) {
		return true
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// Binance internal errors and disconnects
		return apiErr.Code == -1000 || apiErr.Code == -1001 || apiErr.Code == -1021
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "unexpected EOF")
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func() error

// WithRetry executes an operation with exponential backoff retry.
// Rate-limited responses wait RateLimitWait instead of the exponential step.
// Exhaustion returns an *APIError so callers can drop the symbol, not the run.
func WithRetry(ctx context.Context, config RetryConfig, operation RetryableOperation) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				log.Debug().
					Int("attempt", attempt+1).
					Msg("Exchange request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return asAPIError(err)
		}

		if attempt == config.MaxRetries {
			break
		}

		wait := backoff
		if IsRateLimited(err) {
			wait = config.RateLimitWait
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", config.MaxRetries+1).
			Dur("backoff", wait).
			Msg("Exchange request failed, retrying with backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", ctx.Err())
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffFactor)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w",
		config.MaxRetries+1, asAPIError(lastErr))
}

// asAPIError converts upstream failures into the typed exchange error
func asAPIError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		status := 0
		switch {
		case apiErr.Code == codeTooManyRequests || apiErr.Code == codeIPBanned:
			status = 429
		case apiErr.Code <= -1000 && apiErr.Code > -1100:
			status = 500
		default:
			status = 400
		}
		return &APIError{StatusCode: status, Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
