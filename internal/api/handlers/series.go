package handlers

import (
	"time"

	"queue-watch-go/internal/core/models"
	"queue-watch-go/internal/db/repository"
)

// maxSeriesPoints caps the unbounded "all" range; longer raw series are
// downsampled by uniform index selection.
const maxSeriesPoints = 1000

// Supported series ranges.
const (
	RangeHour  = "hour"
	RangeDay   = "day"
	RangeMonth = "month"
	RangeAll   = "all"
)

// seriesWindow maps a range name onto its time window and bucket
// granularity. An empty bucket means raw per-capture points. Returns
// ok=false for unknown ranges.
func seriesWindow(rangeName string, now time.Time) (since *time.Time, bucket string, ok bool) {
	switch rangeName {
	case RangeHour:
		t := now.Add(-1 * time.Hour)
		return &t, repository.BucketMinute, true
	case RangeDay:
		t := now.Add(-24 * time.Hour)
		return &t, "", true
	case RangeMonth:
		t := now.Add(-30 * 24 * time.Hour)
		return &t, repository.BucketHour, true
	case RangeAll:
		return nil, "", true
	default:
		return nil, "", false
	}
}

// downsamplePoints reduces a series to at most max points by picking
// uniformly spaced indices, keeping chronology. With max > 1 the first and
// last point always survive; max == 1 keeps the most recent point.
func downsamplePoints(points []models.SeriesPoint, max int) []models.SeriesPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	sampled := make([]models.SeriesPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	lastIdx := -1
	for i := 0; i < max; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx > len(points)-1 {
			idx = len(points) - 1
		}
		if idx == lastIdx {
			continue
		}
		lastIdx = idx
		sampled = append(sampled, points[idx])
	}
	return sampled
}
