package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mediagrab/internal/models"
	"mediagrab/internal/storage"
)

// ServeMedia streams a mirrored binary by its storage key. Only keys
// that a completed delivery registered in the cache are served.
func ServeMedia(c *gin.Context, storageInstance storage.Storage, db *gorm.DB) {
	key := c.Param("key")

	var cached models.CachedDelivery
	if err := db.Where("storage_key = ?", "media/"+key).First(&cached).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	exists, err := storageInstance.Exists(cached.StorageKey)
	if err != nil || !exists {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", mediaContentType(&cached))
	c.Header("Content-Encoding", "")
	c.Header("ETag", mediaETag(key, &cached))

	// Seekable backends get range support; everything else streams.
	if seekable, ok := storageInstance.(storage.SeekableStorage); ok {
		r, err := seekable.SeekableReader(cached.StorageKey)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		defer r.Close()
		http.ServeContent(c.Writer, c.Request, key, cached.DeliveredAt, r)
		return
	}

	r, err := storageInstance.Reader(cached.StorageKey)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	defer r.Close()
	io.Copy(c.Writer, r)
}

// mediaContentType reports the mime the provider declared for the
// cached media, falling back to a generic binary type.
func mediaContentType(cached *models.CachedDelivery) string {
	if cached.MimeType != "" {
		return cached.MimeType
	}
	return "application/octet-stream"
}

// mediaETag builds a validator from the key and delivery time. Storage
// may hold the binary compressed, so its reported size says nothing
// about the body actually served.
func mediaETag(key string, cached *models.CachedDelivery) string {
	return fmt.Sprintf("\"%s-%d\"", key, cached.DeliveredAt.Unix())
}
