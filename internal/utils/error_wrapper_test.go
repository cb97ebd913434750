package utils

import (
	"errors"
	"io"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		BackoffType:  FixedBackoff,
		InitialDelay: time.Millisecond,
	}
}

func TestWithRetryConfigEventualSuccess(t *testing.T) {
	attempts := 0
	err := WithRetryConfig(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, io.Discard, fastRetryConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryConfigExhaustsRetries(t *testing.T) {
	permanent := errors.New("permanent")
	err := WithRetryConfig(func() error {
		return permanent
	}, io.Discard, fastRetryConfig())

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, permanent) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        10,
		BackoffType:       ExponentialBackoff,
		InitialDelay:      time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
	if d := backoffDelay(config, 9); d != 5*time.Second {
		t.Errorf("expected delay capped at 5s, got %v", d)
	}
}
