// Package mirror copies a selected delivery stream into storage so the
// binary outlives the provider's short-lived URL.
package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mediagrab/internal/storage"
	"mediagrab/internal/utils"
)

type Mirror struct {
	storage  storage.Storage
	client   *http.Client
	maxBytes int64

	// ValidateURL gates every delivery URL before the fetch. Nil
	// disables the gate (tests with loopback servers).
	ValidateURL func(url string) error
}

func New(st storage.Storage, client *http.Client, maxBytes int64) *Mirror {
	if client == nil {
		client = &http.Client{Timeout: utils.DefaultTimeoutConfig().MirrorTimeout}
	}
	return &Mirror{
		storage:     st,
		client:      client,
		maxBytes:    maxBytes,
		ValidateURL: utils.ValidateURL,
	}
}

// Key derives the storage key for an original URL.
func Key(originalURL string) string {
	sum := sha256.Sum256([]byte(originalURL))
	return "media/" + hex.EncodeToString(sum[:])
}

// MirrorStream downloads deliveryURL into storage under the key for
// originalURL, skipping the download when the object already exists.
func (m *Mirror) MirrorStream(ctx context.Context, originalURL, deliveryURL string) (string, error) {
	key := Key(originalURL)

	if m.ValidateURL != nil {
		if err := m.ValidateURL(deliveryURL); err != nil {
			return "", fmt.Errorf("mirror refused URL: %w", err)
		}
	}

	exists, err := m.storage.Exists(key)
	if err != nil {
		return "", err
	}
	if exists {
		slog.Debug("Media already mirrored", "key", key)
		return key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, deliveryURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mirror fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", fmt.Errorf("mirror fetch returned status %d", resp.StatusCode)
	}

	w, err := m.storage.Writer(key)
	if err != nil {
		return "", err
	}

	// One byte past the limit distinguishes "exactly at the limit"
	// from "over it".
	n, err := io.Copy(w, io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		w.Close()
		return "", fmt.Errorf("mirror copy: %w", err)
	}
	if n > m.maxBytes {
		w.Close()
		return "", fmt.Errorf("stream exceeds mirror limit of %d bytes", m.maxBytes)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	slog.Info("Mirrored media", "key", key, "bytes", n)
	return key, nil
}
