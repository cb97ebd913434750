package utils

import (
	"context"
	"time"
)

// TimeoutConfig holds timeout configuration for different operations
type TimeoutConfig struct {
	ResolveTimeout time.Duration // Max time to resolve all links in one message
	FetchTimeout   time.Duration // Max time for a single provider fetch
	DeliverTimeout time.Duration // Max time for a delivery upload
	MirrorTimeout  time.Duration // Max time to mirror a delivered binary
}

// DefaultTimeoutConfig returns sensible default timeouts
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ResolveTimeout: 45 * time.Second,
		FetchTimeout:   30 * time.Second,
		DeliverTimeout: 2 * time.Minute,
		MirrorTimeout:  5 * time.Minute,
	}
}

// WithTimeout wraps a function with a timeout context
func WithTimeout(timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
