package utils

import (
	"fmt"
	"io"
	"time"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	MaxRetries        int
	BackoffType       BackoffType
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// BackoffType defines the type of backoff strategy
type BackoffType int

const (
	LinearBackoff BackoffType = iota
	ExponentialBackoff
	FixedBackoff
)

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BackoffType:       ExponentialBackoff,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// WithRetryConfig wraps a function with configurable retry behavior,
// logging each failed attempt to logWriter.
func WithRetryConfig(fn func() error, logWriter io.Writer, config RetryConfig) error {
	var lastErr error
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		fmt.Fprintf(logWriter, "Error (retry %d/%d): %v\n", attempt+1, config.MaxRetries, lastErr)
		if attempt+1 < config.MaxRetries {
			delay := backoffDelay(config, attempt)
			fmt.Fprintf(logWriter, "Retrying in %v...\n", delay)
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

func backoffDelay(config RetryConfig, attempt int) time.Duration {
	var delay time.Duration
	switch config.BackoffType {
	case LinearBackoff:
		delay = config.InitialDelay * time.Duration(attempt+1)
	case ExponentialBackoff:
		delay = config.InitialDelay
		for i := 0; i < attempt; i++ {
			delay = time.Duration(float64(delay) * config.BackoffMultiplier)
		}
	default:
		delay = config.InitialDelay
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}
