package feeds

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

const defaultCheckEvery = time.Minute

// Scheduler regenerates the feed artifacts once they are older than the
// configured interval, then forces a batch checkpoint so the new XML
// replicates promptly.
type Scheduler struct {
	gen         *Generator
	checkpoints *checkpoint.Coordinator
	clock       pubmed.Clock
	interval    time.Duration
	checkEvery  time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	lastRun time.Time
}

// NewScheduler creates the feed regeneration loop.
func NewScheduler(gen *Generator, checkpoints *checkpoint.Coordinator, clock pubmed.Clock, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		gen:         gen,
		checkpoints: checkpoints,
		clock:       clock,
		interval:    interval,
		checkEvery:  defaultCheckEvery,
		logger:      logger.Named("feeds"),
	}
}

// Run checks periodically whether the feeds are due and regenerates
// them when they are. The first check fires immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if _, err := s.MaybeGenerate(ctx); err != nil {
		s.logger.Warn("feed generation failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.MaybeGenerate(ctx); err != nil {
				s.logger.Warn("feed generation failed", zap.Error(err))
			}
		}
	}
}

// MaybeGenerate regenerates the feeds if they never ran or are older
// than the interval. It reports whether a generation happened.
func (s *Scheduler) MaybeGenerate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.interval {
		return false, nil
	}

	if err := s.gen.Generate(ctx); err != nil {
		metrics.ObserveFeedGeneration("rss", "error")
		return false, err
	}
	s.lastRun = now
	metrics.ObserveFeedGeneration("rss", "ok")

	if _, err := s.checkpoints.Flush(ctx, checkpoint.StageBatchComplete); err != nil {
		s.logger.Warn("feed checkpoint failed", zap.Error(err))
	}
	return true, nil
}
