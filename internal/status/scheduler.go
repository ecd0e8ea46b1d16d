package status

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

const defaultCheckEvery = time.Minute

// Scheduler republishes the status artifacts once they are older than
// the configured interval, then forces a status checkpoint.
type Scheduler struct {
	collector   *Collector
	checkpoints *checkpoint.Coordinator
	clock       pubmed.Clock
	interval    time.Duration
	checkEvery  time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	lastRun time.Time
}

// NewScheduler creates the dashboard refresh loop.
func NewScheduler(collector *Collector, checkpoints *checkpoint.Coordinator, clock pubmed.Clock, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		collector:   collector,
		checkpoints: checkpoints,
		clock:       clock,
		interval:    interval,
		checkEvery:  defaultCheckEvery,
		logger:      logger.Named("status"),
	}
}

// Run checks periodically whether the dashboard is due and republishes
// it when it is. The first check fires immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if _, err := s.MaybePublish(ctx); err != nil {
		s.logger.Warn("status publish failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.MaybePublish(ctx); err != nil {
				s.logger.Warn("status publish failed", zap.Error(err))
			}
		}
	}
}

// MaybePublish republishes the dashboard if it never ran or is older
// than the interval. It reports whether a publish happened.
func (s *Scheduler) MaybePublish(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.interval {
		return false, nil
	}

	if _, err := s.collector.Publish(ctx); err != nil {
		return false, err
	}
	s.lastRun = now

	if _, err := s.checkpoints.Flush(ctx, checkpoint.StageStatusUpdate); err != nil {
		s.logger.Warn("status checkpoint failed", zap.Error(err))
	}
	return true, nil
}
