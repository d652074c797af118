package handlers

import (
	"testing"
	"time"

	"queue-watch-go/internal/core/models"
	"queue-watch-go/internal/db/repository"
)

func makePoints(n int) []models.SeriesPoint {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.SeriesPoint, n)
	for i := range points {
		points[i] = models.SeriesPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Value:     float64(i),
		}
	}
	return points
}

func TestDownsamplePassthroughWhenUnderLimit(t *testing.T) {
	points := makePoints(10)
	got := downsamplePoints(points, 1000)
	if len(got) != 10 {
		t.Fatalf("downsample of %d points with limit 1000 returned %d", len(points), len(got))
	}
	for i := range got {
		if got[i] != points[i] {
			t.Fatalf("point %d changed during passthrough", i)
		}
	}
}

func TestDownsampleKeepsEndpointsAndOrder(t *testing.T) {
	points := makePoints(5000)
	got := downsamplePoints(points, 1000)

	if len(got) != 1000 {
		t.Fatalf("downsample returned %d points, want 1000", len(got))
	}
	if got[0] != points[0] {
		t.Error("first point not preserved")
	}
	if got[len(got)-1] != points[len(points)-1] {
		t.Error("last point not preserved")
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("points out of order at index %d", i)
		}
	}
}

func TestDownsampleToSinglePointKeepsLatest(t *testing.T) {
	points := makePoints(100)
	got := downsamplePoints(points, 1)
	if len(got) != 1 || got[0] != points[len(points)-1] {
		t.Errorf("downsample to 1 = %v, want the most recent point only", got)
	}
}

func TestSeriesWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		rangeName  string
		wantSince  *time.Time
		wantBucket string
		wantOK     bool
	}{
		{"hour buckets by minute", RangeHour, timePtr(now.Add(-1 * time.Hour)), repository.BucketMinute, true},
		{"day is raw", RangeDay, timePtr(now.Add(-24 * time.Hour)), "", true},
		{"month buckets by hour", RangeMonth, timePtr(now.Add(-30 * 24 * time.Hour)), repository.BucketHour, true},
		{"all is unbounded raw", RangeAll, nil, "", true},
		{"unknown rejected", "fortnight", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			since, bucket, ok := seriesWindow(tt.rangeName, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if (since == nil) != (tt.wantSince == nil) {
				t.Fatalf("since = %v, want %v", since, tt.wantSince)
			}
			if since != nil && !since.Equal(*tt.wantSince) {
				t.Errorf("since = %v, want %v", since, tt.wantSince)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
