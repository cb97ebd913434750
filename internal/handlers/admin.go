package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"gorm.io/gorm"

	"mediagrab/internal/history"
	"mediagrab/internal/models"
	"mediagrab/internal/workers"
)

func AdminGet(c *gin.Context, db *gorm.DB, reporter *history.Reporter) {
	if !RequireLogin(c) {
		return
	}

	var deliveries []models.Delivery
	db.Order("created_at DESC").Limit(100).Find(&deliveries)

	reports, err := reporter.ListReports(c.Request.Context(), 100)
	if err != nil {
		reports = nil
	}

	// Queue status summary for the dashboard
	var queueSummary struct {
		Pending         int64
		Processing      int64
		Failed          int64
		RecentCompleted int64
	}
	db.Model(&models.Delivery{}).Where("status = 'pending'").Count(&queueSummary.Pending)
	db.Model(&models.Delivery{}).Where("status = 'processing'").Count(&queueSummary.Processing)
	db.Model(&models.Delivery{}).Where("status = 'failed'").Count(&queueSummary.Failed)

	// Count deliveries completed in the past 5 minutes
	fiveMinutesAgo := time.Now().Add(-5 * time.Minute)
	db.Model(&models.Delivery{}).Where("status = 'completed' AND updated_at > ?", fiveMinutesAgo).Count(&queueSummary.RecentCompleted)

	c.HTML(http.StatusOK, "admin.html", gin.H{
		"deliveries":   deliveries,
		"reports":      reports,
		"queueSummary": queueSummary,
	})
}

// RetryDelivery re-enqueues a failed delivery.
func RetryDelivery(c *gin.Context, db *gorm.DB, riverClient *river.Client[pgx.Tx]) {
	if !RequireLogin(c) {
		return
	}
	id := c.Param("id")
	var delivery models.Delivery
	if db.First(&delivery, id).Error != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid delivery ID"})
		return
	}
	if delivery.Status != models.StatusFailed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only failed deliveries can be retried"})
		return
	}

	db.Model(&delivery).Updates(map[string]interface{}{
		"status": models.StatusPending,
		"error":  "",
	})

	args := workers.DeliveryJobArgs{
		DeliveryID:  delivery.ID,
		UserID:      delivery.UserID,
		OriginalURL: delivery.OriginalURL,
	}
	_, err := riverClient.Insert(context.Background(), args, &river.InsertOpts{
		MaxAttempts: 3,
		Tags:        []string{"delivery", "retry"},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue retry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// GetDeliveryLog returns the progress log of a delivery.
func GetDeliveryLog(c *gin.Context, db *gorm.DB) {
	if !RequireLogin(c) {
		return
	}
	id := c.Param("id")
	var delivery models.Delivery
	if db.First(&delivery, id).Error != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": delivery.Logs})
}
