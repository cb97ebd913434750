package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"gorm.io/gorm"

	"mediagrab/internal/medias"
	"mediagrab/internal/models"
)

// QueueDelivery records a pending delivery and enqueues its job. The
// unique options make two identical enqueues racing within the window
// collapse into one job.
func QueueDelivery(ctx context.Context, db *gorm.DB, riverClient *river.Client[pgx.Tx], userID string, media medias.Media) (uint, error) {
	encoded, err := json.Marshal(media)
	if err != nil {
		return 0, fmt.Errorf("encode media: %w", err)
	}

	delivery := models.Delivery{
		UserID:      userID,
		OriginalURL: media.OriginalURL(),
		Status:      models.StatusPending,
		Media:       encoded,
	}
	if err := db.WithContext(ctx).Create(&delivery).Error; err != nil {
		return 0, fmt.Errorf("create delivery: %w", err)
	}

	args := DeliveryJobArgs{
		DeliveryID:  delivery.ID,
		UserID:      userID,
		OriginalURL: media.OriginalURL(),
	}
	opts := &river.InsertOpts{
		MaxAttempts: 3,
		Tags:        []string{"delivery", string(media.Type())},
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 1 * time.Minute,
		},
	}

	res, err := riverClient.Insert(ctx, args, opts)
	if err != nil {
		db.Model(&delivery).Update("status", models.StatusFailed)
		return 0, fmt.Errorf("enqueue delivery: %w", err)
	}

	if res.UniqueSkippedAsDuplicate {
		// An identical (user, URL) job is already queued. Drop the
		// redundant delivery row and point the caller at the one the
		// existing job is working on.
		existingID, derr := deliveryIDFromJob(res.Job)
		if derr != nil {
			return 0, fmt.Errorf("decode existing delivery job: %w", derr)
		}
		db.WithContext(ctx).Delete(&delivery)
		slog.Info("Delivery job already queued, reusing it",
			"delivery_id", existingID,
			"job_id", res.Job.ID,
			"url", media.OriginalURL())
		return existingID, nil
	}

	slog.Info("Queued delivery",
		"delivery_id", delivery.ID,
		"user_id", userID,
		"url", media.OriginalURL(),
		"type", string(media.Type()),
		"job_id", res.Job.ID)
	return delivery.ID, nil
}

// deliveryIDFromJob recovers the delivery row ID from an already-queued
// job's encoded args.
func deliveryIDFromJob(job *rivertype.JobRow) (uint, error) {
	var args DeliveryJobArgs
	if err := json.Unmarshal(job.EncodedArgs, &args); err != nil {
		return 0, err
	}
	return args.DeliveryID, nil
}
