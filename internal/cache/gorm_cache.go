package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mediagrab/internal/models"
)

// GormCache persists delivery handles in the database. A TTL of zero
// keeps entries forever; otherwise Get treats older entries as absent
// and Sweep removes them.
type GormCache struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewGormCache(db *gorm.DB, ttl time.Duration) *GormCache {
	return &GormCache{db: db, ttl: ttl}
}

func (c *GormCache) Get(ctx context.Context, originalURL string) (*Entry, error) {
	var row models.CachedDelivery
	err := c.db.WithContext(ctx).Where("original_url = ?", originalURL).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 && time.Since(row.DeliveredAt) > c.ttl {
		return nil, nil
	}
	return &Entry{Handle: row.Handle, StorageKey: row.StorageKey, MimeType: row.MimeType}, nil
}

// Put upserts the entry for the URL. The single-key ON CONFLICT update
// is what makes concurrent deliveries of the same URL safe
// (last write wins).
func (c *GormCache) Put(ctx context.Context, originalURL string, entry Entry) error {
	row := models.CachedDelivery{
		OriginalURL: originalURL,
		Handle:      entry.Handle,
		StorageKey:  entry.StorageKey,
		MimeType:    entry.MimeType,
		DeliveredAt: time.Now(),
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "original_url"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "storage_key", "mime_type", "delivered_at", "updated_at"}),
	}).Create(&row).Error
}

// Sweep deletes expired entries. Run it periodically when a TTL is
// configured.
func (c *GormCache) Sweep(ctx context.Context) error {
	if c.ttl <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-c.ttl)
	res := c.db.WithContext(ctx).Where("delivered_at < ?", cutoff).Delete(&models.CachedDelivery{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		slog.Info("Swept expired cache entries", "count", res.RowsAffected)
	}
	return nil
}
