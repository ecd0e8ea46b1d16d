// Package checkpoint decides when accumulated artifact changes are
// committed and replicated. Each pipeline stage records completions
// here; the coordinator applies a per-stage cadence so cheap stages
// batch more work per commit than expensive ones.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/replicate"
)

// Stage labels accepted by Record. Unknown labels fall back to
// commit-every-time.
const (
	StageMetadata      = "metadata"
	StageAbstract      = "abstract"
	StageFulltext      = "fulltext"
	StageOCR           = "ocr"
	StageBatchComplete = "batch_complete"
	StageStatusUpdate  = "status_update"
)

// Cadence sets how many recorded completions trigger a commit and a
// push for one stage.
type Cadence struct {
	Commit int
	Push   int
}

// DefaultCadences batches commits more aggressively for the cheap,
// high-volume stages and checkpoints the expensive ones promptly.
func DefaultCadences() map[string]Cadence {
	return map[string]Cadence{
		StageMetadata:      {Commit: 10, Push: 50},
		StageAbstract:      {Commit: 5, Push: 25},
		StageFulltext:      {Commit: 3, Push: 10},
		StageOCR:           {Commit: 2, Push: 5},
		StageBatchComplete: {Commit: 1, Push: 1},
		StageStatusUpdate:  {Commit: 1, Push: 1},
	}
}

// Config captures the tunables of the coordinator.
type Config struct {
	// PushInterval is the heartbeat: a commit pushes regardless of the
	// stage cadence once this much time passed since the last push.
	PushInterval time.Duration `mapstructure:"push_interval" yaml:"push_interval"`
	// Cadences overrides DefaultCadences per stage when non-nil.
	Cadences map[string]Cadence `mapstructure:"cadences" yaml:"cadences"`
}

// Result reports what a Record call actually did.
type Result struct {
	Committed bool
	Pushed    bool
}

// Coordinator serializes checkpoint decisions across all stages.
type Coordinator struct {
	repl     replicate.Replicator
	clock    pubmed.Clock
	logger   *zap.Logger
	cadences map[string]Cadence
	interval time.Duration

	mu       sync.Mutex
	counts   map[string]int
	lastPush time.Time
}

// New creates a coordinator over the given replication backend.
func New(repl replicate.Replicator, clock pubmed.Clock, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.PushInterval
	if interval <= 0 {
		interval = time.Hour
	}
	cadences := DefaultCadences()
	for stage, cadence := range cfg.Cadences {
		if cadence.Commit > 0 && cadence.Push > 0 {
			cadences[stage] = cadence
		}
	}
	return &Coordinator{
		repl:     repl,
		clock:    clock,
		logger:   logger,
		cadences: cadences,
		interval: interval,
		counts:   make(map[string]int),
		lastPush: clock.Now(),
	}
}

// Record counts one completion for stage and commits/pushes when the
// stage cadence (or force) says so. A failed commit aborts before the
// push; a failed push is logged and not retried until the next
// checkpoint comes due.
func (c *Coordinator) Record(ctx context.Context, stage string, force bool) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[stage]++
	count := c.counts[stage]
	cadence, ok := c.cadences[stage]
	if !ok {
		cadence = Cadence{Commit: 1, Push: 1}
	}

	commitDue := force || count%cadence.Commit == 0
	if !commitDue {
		return Result{}, nil
	}

	if err := c.repl.Stage(ctx); err != nil {
		return Result{}, fmt.Errorf("stage %s checkpoint: %w", stage, err)
	}
	if err := c.repl.Commit(ctx, c.message(stage, count)); err != nil {
		return Result{}, fmt.Errorf("commit %s checkpoint: %w", stage, err)
	}
	result := Result{Committed: true}

	now := c.clock.Now()
	pushDue := force || count%cadence.Push == 0 || now.Sub(c.lastPush) >= c.interval
	if !pushDue {
		return result, nil
	}

	if err := c.repl.Push(ctx); err != nil {
		// The commit stands; replication catches up on the next push.
		c.logger.Warn("checkpoint push failed",
			zap.String("stage", stage),
			zap.Error(err),
		)
		return result, nil
	}
	c.lastPush = now
	result.Pushed = true
	return result, nil
}

// Flush forces a commit-and-push of whatever has accumulated, used at
// shutdown and after scheduler runs.
func (c *Coordinator) Flush(ctx context.Context, stage string) (Result, error) {
	return c.Record(ctx, stage, true)
}

func (c *Coordinator) message(stage string, count int) string {
	return fmt.Sprintf("Update %s artifacts (%d processed)\n\nAutomated checkpoint at %s",
		stage, count, c.clock.Now().UTC().Format(time.RFC3339))
}
