package history

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mediagrab/internal/models"
)

// Reporter persists problem reports deduplicated by
// (type, message, place): the same failing query reported many times
// stores exactly one row.
type Reporter struct {
	db *gorm.DB
}

func NewReporter(db *gorm.DB) *Reporter {
	return &Reporter{db: db}
}

// FindOrCreateReport returns the ID of the report matching the triple,
// creating it first if needed. The insert uses ON CONFLICT DO NOTHING
// against the unique index, so two concurrent calls for the same
// triple cannot both create a row.
func (r *Reporter) FindOrCreateReport(ctx context.Context, reportType, message, place string, extraData []byte) (uint, error) {
	report := models.Report{
		ReportType: reportType,
		Message:    message,
		Place:      place,
		ExtraData:  extraData,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&report).Error; err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}
	if report.ID != 0 {
		return report.ID, nil
	}

	// Conflict path: the row already existed, look it up.
	var existing models.Report
	err := r.db.WithContext(ctx).
		Where("report_type = ? AND message = ? AND place = ?", reportType, message, place).
		First(&existing).Error
	if err != nil {
		return 0, fmt.Errorf("find report: %w", err)
	}
	return existing.ID, nil
}

// ListReports returns recent reports for the admin page.
func (r *Reporter) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	var reports []models.Report
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&reports).Error
	return reports, err
}
