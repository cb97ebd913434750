package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/riverqueue/river"
	"gorm.io/gorm"

	"mediagrab/internal/cache"
	"mediagrab/internal/history"
	"mediagrab/internal/medias"
	"mediagrab/internal/mirror"
	"mediagrab/internal/models"
	"mediagrab/internal/utils"
)

// DeliveryJobArgs is the payload for a delivery job in River. Only the
// user and URL participate in uniqueness; the delivery row ID is fresh
// on every enqueue and would defeat duplicate collapsing.
type DeliveryJobArgs struct {
	DeliveryID  uint   `json:"delivery_id"`
	UserID      string `json:"user_id" river:"unique"`
	OriginalURL string `json:"original_url" river:"unique"`
}

// Kind returns the job kind for River.
func (DeliveryJobArgs) Kind() string { return "delivery" }

// DeliveryWorker sends resolved media to users. A cache hit short
// circuits the upload; a miss delivers the binary, mirrors it and
// stores the returned handle for next time.
type DeliveryWorker struct {
	river.WorkerDefaults[DeliveryJobArgs]
	db        *gorm.DB
	cache     cache.Cache
	historyst *history.Store
	mirror    *mirror.Mirror
	deliverer Deliverer
}

func NewDeliveryWorker(db *gorm.DB, c cache.Cache, hs *history.Store, m *mirror.Mirror, d Deliverer) *DeliveryWorker {
	return &DeliveryWorker{db: db, cache: c, historyst: hs, mirror: m, deliverer: d}
}

// Work processes a single delivery job from the queue.
func (w *DeliveryWorker) Work(ctx context.Context, job *river.Job[DeliveryJobArgs]) error {
	args := job.Args
	logger := slog.With(
		"worker", "delivery",
		"job_id", job.ID,
		"attempt", job.Attempt,
		"delivery_id", args.DeliveryID,
		"url", args.OriginalURL,
	)

	logger.Info("Processing delivery job")

	var delivery models.Delivery
	if err := w.db.First(&delivery, args.DeliveryID).Error; err != nil {
		logger.Error("Failed to find delivery", "error", err)
		return fmt.Errorf("delivery %d not found: %w", args.DeliveryID, err)
	}

	w.db.Model(&delivery).Updates(map[string]interface{}{
		"status":      models.StatusProcessing,
		"retry_count": job.Attempt,
	})

	logWriter := utils.NewDBLogWriter(w.db, delivery.ID)
	fmt.Fprintf(logWriter, "Starting delivery for %s (attempt %d/%d)\n", args.OriginalURL, job.Attempt, job.MaxAttempts)

	err := w.process(ctx, &delivery, logger, logWriter)
	if err != nil {
		logger.Error("Delivery failed", "error", err)
		fmt.Fprintf(logWriter, "Delivery failed: %v\n", err)
		// On the final attempt, mark as failed permanently.
		if job.Attempt >= job.MaxAttempts {
			w.db.Model(&delivery).Updates(map[string]interface{}{
				"status": models.StatusFailed,
				"error":  err.Error(),
			})
		}
		return err
	}

	w.db.Model(&delivery).Updates(map[string]interface{}{
		"status": models.StatusCompleted,
		"error":  "",
	})
	fmt.Fprintf(logWriter, "Delivery completed\n")
	logger.Info("Delivery completed")
	return nil
}

func (w *DeliveryWorker) process(ctx context.Context, delivery *models.Delivery, logger *slog.Logger, logWriter io.Writer) error {
	media, err := decodeMedia(delivery.Media)
	if err != nil {
		return err
	}

	// Cheap path: the binary was uploaded before, reuse its handle.
	entry, err := w.cache.Get(ctx, delivery.OriginalURL)
	if err != nil {
		return fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil && len(entry.Handle) > 0 {
		logger.Info("Cache hit, re-sending by handle")
		fmt.Fprintf(logWriter, "Cache hit, re-sending by handle\n")
		if err := w.deliverer.DeliverCached(ctx, delivery.UserID, entry.Handle); err != nil {
			return err
		}
		return w.recordHistory(ctx, delivery.UserID, media)
	}

	fmt.Fprintf(logWriter, "Cache miss, uploading binary\n")
	handle, err := w.deliverer.Deliver(ctx, delivery.UserID, media)
	if err != nil {
		return err
	}

	newEntry := cache.Entry{Handle: handle}
	if video, ok := media.(medias.Video); ok {
		newEntry.MimeType = video.MimeType
		if w.mirror != nil {
			var key string
			merr := utils.WithRetryConfig(func() error {
				var ferr error
				key, ferr = w.mirror.MirrorStream(ctx, delivery.OriginalURL, video.URL)
				return ferr
			}, logWriter, utils.DefaultRetryConfig())
			if merr != nil {
				// Mirroring is best-effort; the delivery already
				// succeeded.
				logger.Warn("Failed to mirror media", "error", merr)
			} else {
				fmt.Fprintf(logWriter, "Mirrored binary to %s\n", key)
				newEntry.StorageKey = key
			}
		}
	}

	if err := w.cache.Put(ctx, delivery.OriginalURL, newEntry); err != nil {
		logger.Warn("Failed to cache delivery handle", "error", err)
	}
	return w.recordHistory(ctx, delivery.UserID, media)
}

func (w *DeliveryWorker) recordHistory(ctx context.Context, userID string, media medias.Media) error {
	video, ok := media.(medias.Video)
	if !ok || w.historyst == nil {
		return nil
	}
	if err := w.historyst.RecordIfAbsent(ctx, userID, video); err != nil {
		// History is advisory; never fail a completed delivery on it.
		slog.Warn("Failed to record history", "user_id", userID, "error", err)
	}
	return nil
}

// decodeMedia rebuilds the concrete media value from its stored JSON.
func decodeMedia(raw []byte) (medias.Media, error) {
	var probe struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}

	if len(probe.Items) > 0 {
		var group medias.MediaGroup
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, fmt.Errorf("decode media group: %w", err)
		}
		return group, nil
	}

	var video medias.Video
	if err := json.Unmarshal(raw, &video); err != nil {
		return nil, fmt.Errorf("decode video: %w", err)
	}
	return video, nil
}
