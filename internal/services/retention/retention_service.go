package retention

import (
	"sync"
	"time"

	"queue-watch-go/internal/config"
	"queue-watch-go/internal/db/repository"
	"queue-watch-go/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Service removes image payloads from captures older than the configured
// TTL. Counts and statuses are kept forever, only the heavy blobs go.
type Service struct {
	repo          repository.Repository
	ttl           time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	lastRun time.Time
}

// NewService creates a retention service from the retention configuration.
func NewService(repo repository.Repository, cfg config.RetentionConfig) *Service {
	return &Service{
		repo:          repo,
		ttl:           time.Duration(cfg.ImageTTLDays) * 24 * time.Hour,
		sweepInterval: time.Duration(cfg.SweepIntervalHours) * time.Hour,
	}
}

// Prune strips image payloads from all captures older than now minus the
// TTL and returns the number of rows affected.
func (s *Service) Prune(now time.Time) (int64, error) {
	cutoff := now.Add(-s.ttl)
	pruned, err := s.repo.PruneImages(cutoff)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		metrics.PrunedRows.Add(float64(pruned))
		log.Infof("Retention sweep removed image payloads from %d captures older than %s",
			pruned, cutoff.Format(time.RFC3339))
	} else {
		log.Debug("Retention sweep found no eligible captures")
	}
	return pruned, nil
}

// RunIfDue performs a sweep when the configured interval has elapsed since
// the last one. The first call after process start always sweeps. Errors
// are logged, not returned; a failed sweep is retried on the next due call.
func (s *Service) RunIfDue(now time.Time) {
	s.mu.Lock()
	due := s.lastRun.IsZero() || now.Sub(s.lastRun) >= s.sweepInterval
	if due {
		s.lastRun = now
	}
	s.mu.Unlock()

	if !due {
		return
	}
	if _, err := s.Prune(now); err != nil {
		log.WithError(err).Error("Retention sweep failed")
	}
}
