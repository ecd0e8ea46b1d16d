package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/store"
)

// Persister flushes the dedup index snapshot to the durable store on a
// fixed interval. The flush gap is the only dedup state at risk across
// a crash; discovery filtering is idempotent, so a lost flush costs
// rework, not correctness.
type Persister struct {
	index    *Index
	store    store.Store
	interval time.Duration
	logger   *zap.Logger
}

// NewPersister creates the snapshot flush loop.
func NewPersister(index *Index, st store.Store, interval time.Duration, logger *zap.Logger) *Persister {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{
		index:    index,
		store:    st,
		interval: interval,
		logger:   logger.Named("dedup"),
	}
}

// Run flushes on every interval and once more on shutdown.
func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Final flush; the parent context is done, so detach.
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Flush(flushCtx); err != nil {
				p.logger.Error("final dedup flush failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.logger.Warn("dedup flush failed", zap.Error(err))
			}
		}
	}
}

// Flush writes the snapshot if the index changed since the last flush.
func (p *Persister) Flush(ctx context.Context) error {
	if !p.index.Dirty() {
		return nil
	}
	snap := p.index.Snapshot()
	if err := store.WriteDedupSnapshot(ctx, p.store, snap); err != nil {
		return err
	}
	p.index.MarkClean()
	p.logger.Debug("dedup snapshot flushed",
		zap.Int("discovered", len(snap.IDs)),
		zap.Int("completed", len(snap.CompletedIDs)),
	)
	return nil
}
