package models

import (
	"time"

	"gorm.io/datatypes"
)

// Capture status values. Exactly one row is written per ingestion cycle;
// an error row carries a message and no count or image data.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Capture is one capture + inference result snapshot.
//
// Rows are append-only: retention may later null the image payloads (and the
// boxes derived from them), but never the count history or the status.
type Capture struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	CapturedAt          time.Time `gorm:"index;not null" json:"captured_at"`
	CameraID            int       `gorm:"index;not null" json:"camera_id"`
	PeopleCount         *int      `gorm:"index" json:"people_count"`
	ConfidenceThreshold float64   `gorm:"not null" json:"confidence_threshold"`
	ModelName           string    `gorm:"size:200;not null" json:"model_name"`
	ImageWidth          *int      `json:"image_width"`
	ImageHeight         *int      `json:"image_height"`
	RawImage            []byte    `gorm:"type:blob" json:"-"`
	RawImageMime        *string   `gorm:"size:100" json:"-"`
	AnnotatedImage      []byte    `gorm:"type:blob" json:"-"`
	AnnotatedImageMime  *string   `gorm:"size:100" json:"-"`
	// Person boxes that passed the ROI filter, persisted alongside the
	// annotated image they describe.
	Boxes     datatypes.JSON `gorm:"type:json" json:"boxes,omitempty"`
	Status    string         `gorm:"size:20;index;not null" json:"status"`
	Error     *string        `gorm:"type:text" json:"error"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName keeps the table name aligned with the dashboard queries.
func (Capture) TableName() string {
	return "captures"
}

// HasImage reports whether the raw payload is still present (not yet pruned).
func (c *Capture) HasImage() bool {
	return len(c.RawImage) > 0
}

// HasAnnotatedImage reports whether the annotated payload is still present.
func (c *Capture) HasAnnotatedImage() bool {
	return len(c.AnnotatedImage) > 0
}

// Statistics summarizes the stored captures for the dashboard landing data.
type Statistics struct {
	TotalCaptures int64      `json:"total_captures"`
	OKCaptures    int64      `json:"ok_captures"`
	ErrorCaptures int64      `json:"error_captures"`
	LatestCapture *Capture   `json:"latest_capture,omitempty"`
	LatestAt      *time.Time `json:"latest_at,omitempty"`
}

// SeriesPoint is one point of the people-count time series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
