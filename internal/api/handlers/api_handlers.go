package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"queue-watch-go/internal/core/models"
	"queue-watch-go/internal/db/repository"
	"queue-watch-go/internal/server/sse"
	"queue-watch-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// APIHandler serves the JSON API consumed by the dashboard.
type APIHandler struct {
	repo repository.Repository
	hub  *sse.Hub
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(repo repository.Repository, hub *sse.Hub) *APIHandler {
	return &APIHandler{repo: repo, hub: hub}
}

// RegisterRoutes attaches all API routes to the given group.
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/captures", h.GetCaptures)
	router.GET("/captures/:id", h.GetCapture)
	router.GET("/captures/:id/image", h.GetCaptureImage)
	router.GET("/captures/:id/annotated", h.GetCaptureAnnotated)
	router.GET("/metrics/series", h.GetSeries)
	router.GET("/system/stats", h.GetSystemStats)
	router.GET("/events", h.StreamEvents)
}

// GetCaptures returns a paginated list of capture summaries, newest first.
func (h *APIHandler) GetCaptures(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	summaries, total, err := h.repo.GetCaptures(pageSize, (page-1)*pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list captures")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list captures"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
		"items":     summaries,
	})
}

// GetCapture returns one capture's metadata.
func (h *APIHandler) GetCapture(c *gin.Context) {
	capture, ok := h.loadCapture(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, capture)
}

// GetCaptureImage serves the raw captured frame.
func (h *APIHandler) GetCaptureImage(c *gin.Context) {
	capture, ok := h.loadCapture(c)
	if !ok {
		return
	}
	if !capture.HasImage() {
		c.JSON(http.StatusNotFound, gin.H{"error": "image payload not available"})
		return
	}
	mime := "image/jpeg"
	if capture.RawImageMime != nil {
		mime = *capture.RawImageMime
	}
	c.Data(http.StatusOK, mime, capture.RawImage)
}

// GetCaptureAnnotated serves the annotated frame with boxes and the queue
// region drawn in.
func (h *APIHandler) GetCaptureAnnotated(c *gin.Context) {
	capture, ok := h.loadCapture(c)
	if !ok {
		return
	}
	if !capture.HasAnnotatedImage() {
		c.JSON(http.StatusNotFound, gin.H{"error": "annotated payload not available"})
		return
	}
	mime := "image/png"
	if capture.AnnotatedImageMime != nil {
		mime = *capture.AnnotatedImageMime
	}
	c.Data(http.StatusOK, mime, capture.AnnotatedImage)
}

// GetSeries returns the people-count time series for the requested range.
// Depending on the range this is raw per-capture points or averaged buckets;
// the unbounded "all" range is downsampled to maxSeriesPoints.
func (h *APIHandler) GetSeries(c *gin.Context) {
	rangeName := c.DefaultQuery("range", RangeHour)
	since, bucket, ok := seriesWindow(rangeName, time.Now().UTC())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported range %q", rangeName)})
		return
	}

	var points []models.SeriesPoint
	var err error
	if bucket == "" {
		points, err = h.repo.GetSeriesRaw(since)
		if rangeName == RangeAll {
			points = downsamplePoints(points, maxSeriesPoints)
		}
	} else {
		points, err = h.repo.GetSeriesBucketed(bucket, since)
	}
	if err != nil {
		log.WithError(err).Error("Failed to build series")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build series"})
		return
	}
	if points == nil {
		points = []models.SeriesPoint{}
	}

	c.JSON(http.StatusOK, gin.H{
		"range":  rangeName,
		"points": points,
	})
}

// GetSystemStats returns host load plus capture statistics.
func (h *APIHandler) GetSystemStats(c *gin.Context) {
	stats, err := h.repo.GetStatistics()
	if err != nil {
		log.WithError(err).Error("Failed to read capture statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"system":   utils.GetSystemStats(),
		"captures": stats,
	})
}

// StreamEvents streams new-capture events to the client as SSE.
func (h *APIHandler) StreamEvents(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not available"})
		return
	}

	client := h.hub.Register()
	defer h.hub.Unregister(client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("capture", string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// loadCapture resolves the :id path parameter to a capture, writing the
// error response itself when it cannot.
func (h *APIHandler) loadCapture(c *gin.Context) (*models.Capture, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capture id"})
		return nil, false
	}

	found, err := h.repo.GetCaptureByID(uint(id))
	if err != nil {
		log.WithError(err).Errorf("Failed to load capture %d", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load capture"})
		return nil, false
	}
	if found == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "capture not found"})
		return nil, false
	}
	return found, true
}
