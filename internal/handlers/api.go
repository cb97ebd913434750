package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"gorm.io/gorm"

	"mediagrab/internal/history"
	"mediagrab/internal/medias"
	"mediagrab/internal/models"
	"mediagrab/internal/parsers"
	"mediagrab/internal/utils"
	"mediagrab/internal/workers"
)

type resolveRequest struct {
	Text    string `json:"text" validate:"required"`
	UserID  string `json:"user_id"`
	Deliver bool   `json:"deliver"`
}

type resolvedItem struct {
	Type       medias.ParserType `json:"type"`
	Media      medias.Media      `json:"media"`
	DeliveryID uint              `json:"delivery_id,omitempty"`
}

// ApiResolve extracts links from the submitted text, resolves them
// through the parser registry and optionally enqueues delivery jobs.
func ApiResolve(c *gin.Context, db *gorm.DB, registry *parsers.Registry, riverClient *river.Client[pgx.Tx]) {
	var req resolveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Deliver && req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required when deliver is set"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), utils.DefaultTimeoutConfig().ResolveTimeout)
	defer cancel()

	found, err := registry.Dispatch(ctx, req.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve media"})
		return
	}

	items := make([]resolvedItem, 0, len(found))
	for _, m := range found {
		item := resolvedItem{Type: m.Type(), Media: m}
		if req.Deliver {
			deliveryID, err := workers.QueueDelivery(c.Request.Context(), db, riverClient, req.UserID, m)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue delivery"})
				return
			}
			item.DeliveryID = deliveryID
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"media": items})
}

// ApiHistory returns a user's delivered-video history, newest first.
func ApiHistory(c *gin.Context, store *history.Store) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	videos, err := store.List(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if videos == nil {
		videos = []medias.Video{}
	}

	c.JSON(http.StatusOK, gin.H{"history": videos})
}

// ApiDeliveryStatus reports the state of a single enqueued delivery.
func ApiDeliveryStatus(c *gin.Context, db *gorm.DB) {
	id := c.Param("id")
	var delivery models.Delivery
	if err := db.First(&delivery, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Delivery not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           delivery.ID,
		"user_id":      delivery.UserID,
		"original_url": delivery.OriginalURL,
		"status":       delivery.Status,
		"error":        delivery.Error,
		"retry_count":  delivery.RetryCount,
		"updated_at":   delivery.UpdatedAt,
	})
}

type reportRequest struct {
	ReportType string `json:"report_type" validate:"required,oneof=media_not_found wrong_media"`
	Message    string `json:"message" validate:"required"`
	Place      string `json:"place" validate:"required,oneof=inline direct"`
	ExtraData  string `json:"extra_data"`
}

// ApiReport files a problem report, deduplicated per (type, message, place).
func ApiReport(c *gin.Context, reporter *history.Reporter) {
	var req reportRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reportID, err := reporter.FindOrCreateReport(c.Request.Context(), req.ReportType, req.Message, req.Place, []byte(req.ExtraData))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report_id": reportID})
}
