package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mediagrab/internal/medias"
	"mediagrab/internal/models"
)

// testDB connects to the database named by TEST_DB_URL, skipping the
// test when none is configured.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.HistoryEntry{}, &models.Report{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestRecordIfAbsentDeduplicates(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	userID := fmt.Sprintf("user-%d", time.Now().UnixNano())
	video := medias.Video{
		Parser:   medias.TypeYouTube,
		Original: "https://youtu.be/abc",
		URL:      "https://cdn/v.mp4",
		Caption:  "title",
	}

	if err := store.RecordIfAbsent(ctx, userID, video); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordIfAbsent(ctx, userID, video); err != nil {
		t.Fatal(err)
	}

	videos, err := store.List(ctx, userID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected 1 history entry after duplicate record, got %d", len(videos))
	}
	if videos[0].URL != video.URL {
		t.Errorf("unexpected entry %+v", videos[0])
	}

	// A different video for the same user is a second entry.
	other := video
	other.Caption = "another title"
	if err := store.RecordIfAbsent(ctx, userID, other); err != nil {
		t.Fatal(err)
	}
	videos, err = store.List(ctx, userID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(videos))
	}
}

func TestFindOrCreateReportDeduplicates(t *testing.T) {
	db := testDB(t)
	reporter := NewReporter(db)
	ctx := context.Background()

	message := fmt.Sprintf("no media for query %d", time.Now().UnixNano())

	first, err := reporter.FindOrCreateReport(ctx, models.ReportMediaNotFound, message, models.PlaceInline, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first == 0 {
		t.Fatal("expected a report ID")
	}

	second, err := reporter.FindOrCreateReport(ctx, models.ReportMediaNotFound, message, models.PlaceInline, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("expected the existing report %d, got %d", first, second)
	}

	var count int64
	if err := db.Model(&models.Report{}).
		Where("report_type = ? AND message = ? AND place = ?", models.ReportMediaNotFound, message, models.PlaceInline).
		Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 report row, got %d", count)
	}
}
