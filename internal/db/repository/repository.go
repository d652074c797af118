package repository

import (
	"errors"
	"time"

	"queue-watch-go/internal/core/models"

	"gorm.io/gorm"
)

// Series bucket granularities supported by GetSeriesBucketed.
const (
	BucketMinute = "minute"
	BucketHour   = "hour"
)

// CaptureSummary is a capture row without its binary payloads, used for
// paginated listings.
type CaptureSummary struct {
	ID                uint      `gorm:"column:id" json:"id"`
	CapturedAt        time.Time `gorm:"column:captured_at" json:"captured_at"`
	CameraID          int       `gorm:"column:camera_id" json:"camera_id"`
	PeopleCount       *int      `gorm:"column:people_count" json:"people_count"`
	Status            string    `gorm:"column:status" json:"status"`
	Error             *string   `gorm:"column:error" json:"error"`
	HasImage          bool      `gorm:"column:has_image" json:"has_image"`
	HasAnnotatedImage bool      `gorm:"column:has_annotated_image" json:"has_annotated_image"`
}

// Repository defines the storage operations the service needs.
type Repository interface {
	CreateCapture(capture *models.Capture) error
	GetCaptureByID(id uint) (*models.Capture, error)
	GetCaptures(limit, offset int) ([]CaptureSummary, int64, error)
	GetSeriesRaw(since *time.Time) ([]models.SeriesPoint, error)
	GetSeriesBucketed(bucket string, since *time.Time) ([]models.SeriesPoint, error)
	PruneImages(cutoff time.Time) (int64, error)
	GetStatistics() (models.Statistics, error)
}

// SQLiteRepository implements Repository on a gorm SQLite handle.
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateCapture inserts one capture row. gorm wraps single creates in a
// transaction, so a row becomes visible to dashboard readers atomically.
func (r *SQLiteRepository) CreateCapture(capture *models.Capture) error {
	return r.db.Create(capture).Error
}

// GetCaptureByID fetches a capture with its payloads. Returns (nil, nil)
// when the row does not exist.
func (r *SQLiteRepository) GetCaptureByID(id uint) (*models.Capture, error) {
	var capture models.Capture
	result := r.db.First(&capture, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &capture, nil
}

// GetCaptures lists capture summaries newest first, with the total count.
func (r *SQLiteRepository) GetCaptures(limit, offset int) ([]CaptureSummary, int64, error) {
	var summaries []CaptureSummary
	var total int64

	if err := r.db.Model(&models.Capture{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := r.db.Model(&models.Capture{}).
		Select("id, captured_at, camera_id, people_count, status, error, " +
			"raw_image IS NOT NULL AS has_image, " +
			"annotated_image IS NOT NULL AS has_annotated_image").
		Order("captured_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&summaries)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return summaries, total, nil
}

// GetSeriesRaw returns one point per successful capture, oldest first.
func (r *SQLiteRepository) GetSeriesRaw(since *time.Time) ([]models.SeriesPoint, error) {
	rows := []struct {
		CapturedAt  time.Time
		PeopleCount int
	}{}

	query := r.db.Model(&models.Capture{}).
		Select("captured_at, people_count").
		Where("status = ? AND people_count IS NOT NULL", models.StatusOK)
	if since != nil {
		query = query.Where("captured_at >= ?", *since)
	}
	if err := query.Order("captured_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	points := make([]models.SeriesPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, models.SeriesPoint{
			Timestamp: row.CapturedAt,
			Value:     float64(row.PeopleCount),
		})
	}
	return points, nil
}

// GetSeriesBucketed returns average counts grouped into minute or hour
// buckets, oldest first.
func (r *SQLiteRepository) GetSeriesBucketed(bucket string, since *time.Time) ([]models.SeriesPoint, error) {
	var format string
	switch bucket {
	case BucketMinute:
		format = "%Y-%m-%d %H:%M:00"
	case BucketHour:
		format = "%Y-%m-%d %H:00:00"
	default:
		return nil, errors.New("unsupported series bucket: " + bucket)
	}

	rows := []struct {
		Bucket string
		Value  float64
	}{}

	query := r.db.Model(&models.Capture{}).
		Select("strftime(?, captured_at) AS bucket, AVG(people_count) AS value", format).
		Where("status = ? AND people_count IS NOT NULL", models.StatusOK)
	if since != nil {
		query = query.Where("captured_at >= ?", *since)
	}
	if err := query.Group("bucket").Order("bucket").Find(&rows).Error; err != nil {
		return nil, err
	}

	points := make([]models.SeriesPoint, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse("2006-01-02 15:04:05", row.Bucket)
		if err != nil {
			return nil, err
		}
		points = append(points, models.SeriesPoint{Timestamp: ts.UTC(), Value: row.Value})
	}
	return points, nil
}

// PruneImages nulls image payloads, their mime types and the derived boxes
// on rows older than the cutoff that still hold at least one payload.
// Counts, dimensions and status are left untouched; re-running with no
// newly eligible rows affects zero rows.
func (r *SQLiteRepository) PruneImages(cutoff time.Time) (int64, error) {
	result := r.db.Model(&models.Capture{}).
		Where("captured_at < ? AND (raw_image IS NOT NULL OR annotated_image IS NOT NULL)", cutoff).
		Updates(map[string]interface{}{
			"raw_image":            nil,
			"raw_image_mime":       nil,
			"annotated_image":      nil,
			"annotated_image_mime": nil,
			"boxes":                nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GetStatistics summarizes the stored captures.
func (r *SQLiteRepository) GetStatistics() (models.Statistics, error) {
	var stats models.Statistics

	if err := r.db.Model(&models.Capture{}).Count(&stats.TotalCaptures).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.Capture{}).
		Where("status = ?", models.StatusOK).
		Count(&stats.OKCaptures).Error; err != nil {
		return stats, err
	}
	stats.ErrorCaptures = stats.TotalCaptures - stats.OKCaptures

	var latest models.Capture
	err := r.db.Order("captured_at DESC").First(&latest).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, err
		}
	} else {
		stats.LatestCapture = &latest
		stats.LatestAt = &latest.CapturedAt
	}

	return stats, nil
}
