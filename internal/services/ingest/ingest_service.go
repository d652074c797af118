package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"queue-watch-go/internal/camera"
	"queue-watch-go/internal/config"
	"queue-watch-go/internal/core/models"
	"queue-watch-go/internal/db/repository"
	"queue-watch-go/internal/detection"
	"queue-watch-go/internal/integrations/mqtt"
	"queue-watch-go/internal/metrics"
	"queue-watch-go/internal/server/sse"
	"queue-watch-go/internal/services/retention"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	rawImageMime       = "image/jpeg"
	annotatedImageMime = "image/png"
)

// Service drives the periodic capture-count-persist cycle. Each cycle writes
// exactly one capture row, successful or not.
type Service struct {
	repo      repository.Repository
	capturer  camera.FrameCapturer
	counter   *detection.Counter
	mqtt      *mqtt.Client
	hub       *sse.Hub
	retention *retention.Service

	cameraID  int
	modelName string
	interval  time.Duration
}

// NewService wires the ingestion pipeline together. mqttClient, hub and
// retentionSvc may be nil; the corresponding side effects are skipped.
func NewService(
	repo repository.Repository,
	capturer camera.FrameCapturer,
	counter *detection.Counter,
	mqttClient *mqtt.Client,
	hub *sse.Hub,
	retentionSvc *retention.Service,
	cfg *config.Config,
) *Service {
	return &Service{
		repo:      repo,
		capturer:  capturer,
		counter:   counter,
		mqtt:      mqttClient,
		hub:       hub,
		retention: retentionSvc,
		cameraID:  cfg.Camera.ID,
		modelName: cfg.Detection.ModelName,
		interval:  time.Duration(cfg.Worker.IntervalSeconds) * time.Second,
	}
}

// Run executes capture cycles until the context is canceled. Cycle duration
// is subtracted from the interval so captures stay on cadence; a cycle that
// overruns the interval starts the next one immediately.
func (s *Service) Run(ctx context.Context) {
	log.Infof("Ingestion worker started (camera %d, interval %s)", s.cameraID, s.interval)

	for {
		started := time.Now()

		if capture, err := s.RunCycle(ctx); err != nil {
			log.WithError(err).Error("Capture cycle failed and could not be recorded")
		} else if capture.Status == models.StatusOK {
			log.Infof("Capture %d: %d people in queue", capture.ID, *capture.PeopleCount)
		} else {
			log.Warnf("Capture %d recorded error: %s", capture.ID, deref(capture.Error))
		}

		if s.retention != nil {
			s.retention.RunIfDue(time.Now().UTC())
		}

		remaining := s.interval - time.Since(started)
		if remaining < 0 {
			remaining = 0
		}
		select {
		case <-ctx.Done():
			log.Info("Ingestion worker stopped")
			return
		case <-time.After(remaining):
		}
	}
}

// RunCycle performs one capture cycle and persists its outcome. The returned
// error is non-nil only when the outcome itself could not be persisted.
func (s *Service) RunCycle(ctx context.Context) (*models.Capture, error) {
	started := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}()

	framePath := filepath.Join(os.TempDir(), fmt.Sprintf("queue-watch-%s.jpg", uuid.NewString()))
	defer func() {
		if err := os.Remove(framePath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warnf("Failed to remove temporary frame %s", framePath)
		}
	}()

	result, err := s.capturer.CaptureTo(ctx, framePath, s.cameraID)
	if err != nil {
		return s.persistError(time.Now().UTC(), err)
	}

	count, err := s.counter.Count(framePath, result.Width, result.Height)
	if err != nil {
		return s.persistError(result.CapturedAt, fmt.Errorf("detection failed: %w", err))
	}

	capture := &models.Capture{
		CapturedAt:          result.CapturedAt,
		CameraID:            s.cameraID,
		PeopleCount:         &count.Count,
		ConfidenceThreshold: s.counter.Confidence(),
		ModelName:           s.modelName,
		Status:              models.StatusOK,
	}
	if count.Width > 0 && count.Height > 0 {
		capture.ImageWidth = &count.Width
		capture.ImageHeight = &count.Height
	}

	raw, err := os.ReadFile(framePath)
	if err != nil {
		return s.persistError(result.CapturedAt, fmt.Errorf("failed to read captured frame: %w", err))
	}
	mime := rawImageMime
	capture.RawImage = raw
	capture.RawImageMime = &mime

	if boxes, err := json.Marshal(count.Boxes); err == nil {
		capture.Boxes = datatypes.JSON(boxes)
	}

	// An ok row always carries both payloads; a failed overlay render is a
	// detection-phase failure like any other.
	roi := detection.ScaledROI(s.counter.ROI(), count.Width, count.Height)
	annotated, err := detection.Annotate(framePath, count.Boxes, roi)
	if err != nil {
		return s.persistError(result.CapturedAt, fmt.Errorf("detection failed: %w", err))
	}
	annotatedMime := annotatedImageMime
	capture.AnnotatedImage = annotated
	capture.AnnotatedImageMime = &annotatedMime

	if err := s.repo.CreateCapture(capture); err != nil {
		return nil, fmt.Errorf("failed to persist capture: %w", err)
	}

	metrics.CapturesTotal.WithLabelValues(models.StatusOK).Inc()
	metrics.PeopleCount.Set(float64(count.Count))
	s.notify(capture)

	return capture, nil
}

// persistError records a failed cycle as an error row. Tokens never reach
// the row: every stored message passes through redaction.
func (s *Service) persistError(capturedAt time.Time, cause error) (*models.Capture, error) {
	message := camera.RedactTokens(cause.Error())
	capture := &models.Capture{
		CapturedAt:          capturedAt,
		CameraID:            s.cameraID,
		ConfidenceThreshold: s.counter.Confidence(),
		ModelName:           s.modelName,
		Status:              models.StatusError,
		Error:               &message,
	}

	if err := s.repo.CreateCapture(capture); err != nil {
		return nil, fmt.Errorf("failed to persist error capture (cause: %s): %w", message, err)
	}

	metrics.CapturesTotal.WithLabelValues(models.StatusError).Inc()
	s.notify(capture)

	return capture, nil
}

// notify pushes the persisted capture to SSE subscribers and, for successful
// captures, the MQTT topic. Both are best-effort.
func (s *Service) notify(capture *models.Capture) {
	if s.hub != nil {
		s.hub.BroadcastCapture(sse.CaptureEvent{
			ID:          capture.ID,
			CapturedAt:  capture.CapturedAt,
			CameraID:    capture.CameraID,
			PeopleCount: capture.PeopleCount,
			Status:      capture.Status,
			Error:       capture.Error,
		})
	}
	if s.mqtt != nil {
		if err := s.mqtt.PublishCount(capture); err != nil {
			log.WithError(err).Warn("Failed to publish count to MQTT")
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
