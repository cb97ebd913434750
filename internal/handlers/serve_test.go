package handlers

import (
	"fmt"
	"testing"
	"time"

	"mediagrab/internal/models"
)

func TestMediaContentType(t *testing.T) {
	withMime := &models.CachedDelivery{MimeType: "video/mp4"}
	if got := mediaContentType(withMime); got != "video/mp4" {
		t.Errorf("expected the cached mime, got %q", got)
	}

	withoutMime := &models.CachedDelivery{}
	if got := mediaContentType(withoutMime); got != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %q", got)
	}
}

func TestMediaETagIgnoresStoredSize(t *testing.T) {
	delivered := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cached := &models.CachedDelivery{DeliveredAt: delivered}

	want := fmt.Sprintf("\"abc-%d\"", delivered.Unix())
	if got := mediaETag("abc", cached); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	// Same key, later delivery: the validator must change.
	cached.DeliveredAt = delivered.Add(time.Hour)
	if got := mediaETag("abc", cached); got == want {
		t.Error("etag must change when the cached delivery changes")
	}
}
