package repository

import (
	"testing"
	"time"

	"queue-watch-go/internal/core/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Capture{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return NewSQLiteRepository(db)
}

func seedOK(t *testing.T, repo *SQLiteRepository, capturedAt time.Time, count int, withImage bool) *models.Capture {
	t.Helper()
	capture := &models.Capture{
		CapturedAt:          capturedAt,
		CameraID:            461,
		PeopleCount:         &count,
		ConfidenceThreshold: 0.25,
		ModelName:           "yolov8n",
		Status:              models.StatusOK,
	}
	if withImage {
		mime := "image/jpeg"
		capture.RawImage = []byte{0xff, 0xd8}
		capture.RawImageMime = &mime
	}
	if err := repo.CreateCapture(capture); err != nil {
		t.Fatalf("failed to seed capture: %v", err)
	}
	return capture
}

func seedError(t *testing.T, repo *SQLiteRepository, capturedAt time.Time) {
	t.Helper()
	message := "stream offline"
	capture := &models.Capture{
		CapturedAt:          capturedAt,
		CameraID:            461,
		ConfidenceThreshold: 0.25,
		ModelName:           "yolov8n",
		Status:              models.StatusError,
		Error:               &message,
	}
	if err := repo.CreateCapture(capture); err != nil {
		t.Fatalf("failed to seed error capture: %v", err)
	}
}

func TestGetCaptureByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)
	capture, err := repo.GetCaptureByID(12345)
	if err != nil {
		t.Fatalf("GetCaptureByID() returned error: %v", err)
	}
	if capture != nil {
		t.Errorf("GetCaptureByID() = %+v, want nil for missing row", capture)
	}
}

func TestGetCapturesOrderAndPayloadFlags(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	older := seedOK(t, repo, base, 2, false)
	newer := seedOK(t, repo, base.Add(time.Minute), 4, true)

	summaries, total, err := repo.GetCaptures(10, 0)
	if err != nil {
		t.Fatalf("GetCaptures() returned error: %v", err)
	}
	if total != 2 || len(summaries) != 2 {
		t.Fatalf("GetCaptures() = %d rows, total %d, want 2/2", len(summaries), total)
	}
	if summaries[0].ID != newer.ID || summaries[1].ID != older.ID {
		t.Errorf("captures not ordered newest first: %d, %d", summaries[0].ID, summaries[1].ID)
	}
	if !summaries[0].HasImage {
		t.Error("summary with payload should report has_image")
	}
	if summaries[1].HasImage {
		t.Error("summary without payload should not report has_image")
	}
}

func TestGetCapturesPagination(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedOK(t, repo, base.Add(time.Duration(i)*time.Minute), i, false)
	}

	summaries, total, err := repo.GetCaptures(2, 2)
	if err != nil {
		t.Fatalf("GetCaptures() returned error: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(summaries) != 2 {
		t.Fatalf("page size = %d, want 2", len(summaries))
	}
	if summaries[0].PeopleCount == nil || *summaries[0].PeopleCount != 2 {
		t.Errorf("unexpected page content: %+v", summaries[0])
	}
}

func TestGetSeriesRawExcludesErrorRows(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seedOK(t, repo, base, 3, false)
	seedError(t, repo, base.Add(time.Minute))
	seedOK(t, repo, base.Add(2*time.Minute), 5, false)

	points, err := repo.GetSeriesRaw(nil)
	if err != nil {
		t.Fatalf("GetSeriesRaw() returned error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("GetSeriesRaw() = %d points, want 2", len(points))
	}
	if points[0].Value != 3 || points[1].Value != 5 {
		t.Errorf("points = %v, want counts 3 then 5", points)
	}
	if !points[0].Timestamp.Before(points[1].Timestamp) {
		t.Error("series must be ordered oldest first")
	}
}

func TestGetSeriesRawHonorsSince(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seedOK(t, repo, base, 1, false)
	seedOK(t, repo, base.Add(time.Hour), 2, false)

	since := base.Add(30 * time.Minute)
	points, err := repo.GetSeriesRaw(&since)
	if err != nil {
		t.Fatalf("GetSeriesRaw() returned error: %v", err)
	}
	if len(points) != 1 || points[0].Value != 2 {
		t.Errorf("points = %v, want only the capture after the cutoff", points)
	}
}

func TestGetSeriesBucketedMinuteAverages(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seedOK(t, repo, base.Add(10*time.Second), 2, false)
	seedOK(t, repo, base.Add(40*time.Second), 4, false)
	seedOK(t, repo, base.Add(65*time.Second), 6, false)

	points, err := repo.GetSeriesBucketed(BucketMinute, nil)
	if err != nil {
		t.Fatalf("GetSeriesBucketed() returned error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("GetSeriesBucketed() = %d buckets, want 2", len(points))
	}
	if points[0].Value != 3 {
		t.Errorf("first bucket average = %v, want 3", points[0].Value)
	}
	if !points[0].Timestamp.Equal(base) {
		t.Errorf("first bucket timestamp = %v, want %v", points[0].Timestamp, base)
	}
	if points[1].Value != 6 {
		t.Errorf("second bucket average = %v, want 6", points[1].Value)
	}
}

func TestGetSeriesBucketedRejectsUnknownBucket(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetSeriesBucketed("fortnight", nil); err == nil {
		t.Error("GetSeriesBucketed() should reject unknown bucket names")
	}
}

func TestGetStatistics(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seedOK(t, repo, base, 3, false)
	latest := seedOK(t, repo, base.Add(time.Minute), 7, false)
	seedError(t, repo, base.Add(30*time.Second))

	stats, err := repo.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics() returned error: %v", err)
	}
	if stats.TotalCaptures != 3 || stats.OKCaptures != 2 || stats.ErrorCaptures != 1 {
		t.Errorf("statistics = %+v, want 3 total, 2 ok, 1 error", stats)
	}
	if stats.LatestCapture == nil || stats.LatestCapture.ID != latest.ID {
		t.Errorf("latest capture = %+v, want id %d", stats.LatestCapture, latest.ID)
	}
}

func TestGetStatisticsEmptyDatabase(t *testing.T) {
	repo := newTestRepo(t)
	stats, err := repo.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics() returned error: %v", err)
	}
	if stats.TotalCaptures != 0 || stats.LatestCapture != nil {
		t.Errorf("statistics on empty database = %+v, want zeroes", stats)
	}
}
