package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// DiscoverConfig captures the discovery sweep tunables.
type DiscoverConfig struct {
	// Categories maps a category name to its search terms.
	Categories map[string][]string
	// MaxResultsPerTerm caps each search call.
	MaxResultsPerTerm int
	// DateRange bounds publication years for every query.
	DateRange pubmed.DateRange
	// Interval separates successive full sweeps.
	Interval time.Duration
	// QueryDelay is the politeness gap between external queries.
	QueryDelay time.Duration
	// Cooldown is the wait after a sweep aborts unexpectedly.
	Cooldown time.Duration
}

func (c *DiscoverConfig) applyDefaults() {
	if c.MaxResultsPerTerm <= 0 {
		c.MaxResultsPerTerm = 20
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.QueryDelay <= 0 {
		c.QueryDelay = time.Second
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Minute
	}
}

// DiscoverWorker is the pipeline's producer: on every interval it
// sweeps the configured category/term lists, filters identifiers the
// dedup index already gates, and enqueues the remainder at the
// Metadata stage.
type DiscoverWorker struct {
	searcher pubmed.Searcher
	router   *Router
	index    *Index
	limiter  *rate.Limiter
	cfg      DiscoverConfig
	logger   *zap.Logger
}

// NewDiscoverWorker creates the discovery producer.
func NewDiscoverWorker(searcher pubmed.Searcher, router *Router, index *Index, cfg DiscoverConfig, logger *zap.Logger) *DiscoverWorker {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoverWorker{
		searcher: searcher,
		router:   router,
		index:    index,
		limiter:  rate.NewLimiter(rate.Every(cfg.QueryDelay), 1),
		cfg:      cfg,
		logger:   logger.Named("discover"),
	}
}

// Run sweeps immediately, then on every interval until ctx is done.
func (w *DiscoverWorker) Run(ctx context.Context) {
	for {
		if err := w.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("sweep aborted, cooling down", zap.Error(err))
			if !sleep(ctx, w.cfg.Cooldown) {
				return
			}
			continue
		}
		if !sleep(ctx, w.cfg.Interval) {
			return
		}
	}
}

// Sweep runs one full pass over every category and term. A failing
// term is logged and skipped; the sweep itself only stops on ctx
// cancellation.
func (w *DiscoverWorker) Sweep(ctx context.Context) error {
	for category, terms := range w.cfg.Categories {
		for _, term := range terms {
			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := w.sweepTerm(ctx, category, term); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Warn("search term failed",
					zap.String("category", category),
					zap.String("term", term),
					zap.Error(err),
				)
				metrics.ObserveSearchQuery(category, "error")
			}
		}
	}
	return nil
}

func (w *DiscoverWorker) sweepTerm(ctx context.Context, category, term string) error {
	records, err := w.searcher.Search(ctx, term, w.cfg.MaxResultsPerTerm, w.cfg.DateRange)
	if err != nil {
		return err
	}
	metrics.ObserveSearchQuery(category, "ok")

	enqueued := 0
	for _, rec := range records {
		if rec.PMID == "" || w.index.Seen(rec.PMID) {
			continue
		}
		rec.Category = category
		rec.SearchTerm = term
		item := pubmed.WorkItem{
			ContentID:  rec.PMID,
			Stage:      pubmed.StageMetadata,
			Category:   category,
			SearchTerm: term,
			Record:     rec,
		}
		if err := w.router.Dispatch(ctx, item); err != nil {
			return err
		}
		enqueued++
	}
	if enqueued > 0 {
		w.logger.Info("enqueued new articles",
			zap.String("category", category),
			zap.String("term", term),
			zap.Int("count", enqueued),
		)
	}
	return nil
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
