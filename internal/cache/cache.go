package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is a previously completed delivery for an original URL.
type Entry struct {
	// Handle is the channel-issued token for the uploaded binary. The
	// core never interprets it.
	Handle []byte
	// StorageKey locates the mirrored binary in storage, if one was
	// kept.
	StorageKey string
	// MimeType is the media's content type as reported by the provider.
	MimeType string
}

// Cache stores delivery handles keyed by the canonical original URL.
// Callers must check Get before performing an expensive delivery and
// Put after every successful one. Concurrent Puts for the same URL are
// last-write-wins; there is no stronger guarantee.
type Cache interface {
	// Get returns nil, nil when the URL has no entry. Errors are
	// storage failures only.
	Get(ctx context.Context, originalURL string) (*Entry, error)
	Put(ctx context.Context, originalURL string, entry Entry) error
}

// MemoryCache is a bounded in-process cache. The fixed capacity with
// LRU eviction is the retention policy: old links fall out instead of
// growing without bound.
type MemoryCache struct {
	entries *lru.Cache[string, Entry]
}

func NewMemoryCache(capacity int) (*MemoryCache, error) {
	entries, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Get(_ context.Context, originalURL string) (*Entry, error) {
	entry, ok := c.entries.Get(originalURL)
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryCache) Put(_ context.Context, originalURL string, entry Entry) error {
	c.entries.Add(originalURL, entry)
	return nil
}
