package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/store"
)

// FulltextWorker consumes Fulltext-stage items: it asks the fetcher
// (an ordered adapter chain) for the article's full text. Success
// persists the text plus source metadata and emits the Chunk
// successor; exhaustion writes a dead-letter artifact that the retry
// loop re-attempts later instead of losing the article for good.
type FulltextWorker struct {
	fetcher     pubmed.FullTextFetcher
	store       store.Store
	router      *Router
	checkpoints *checkpoint.Coordinator
	clock       pubmed.Clock
	timeout     time.Duration
	retryEvery  time.Duration
	logger      *zap.Logger
}

// NewFulltextWorker creates the fulltext stage consumer.
func NewFulltextWorker(fetcher pubmed.FullTextFetcher, st store.Store, router *Router, checkpoints *checkpoint.Coordinator, clock pubmed.Clock, timeout, retryEvery time.Duration, logger *zap.Logger) *FulltextWorker {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if retryEvery <= 0 {
		retryEvery = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulltextWorker{
		fetcher:     fetcher,
		store:       st,
		router:      router,
		checkpoints: checkpoints,
		clock:       clock,
		timeout:     timeout,
		retryEvery:  retryEvery,
		logger:      logger.Named("fulltext"),
	}
}

// Run drains the Fulltext channel until ctx is done.
func (w *FulltextWorker) Run(ctx context.Context) {
	in := w.router.Source(pubmed.StageFulltext)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-in:
			w.process(ctx, item)
			metrics.SetQueueDepth(pubmed.StageFulltext.String(), len(in))
		}
	}
}

// RunRetry periodically re-enqueues dead-lettered articles at the
// Fulltext stage. Sources come and go; an article whose adapters all
// failed yesterday may succeed today.
func (w *FulltextWorker) RunRetry(ctx context.Context) {
	for {
		if !sleep(ctx, w.retryEvery) {
			return
		}
		w.retryDeadLetters(ctx)
	}
}

func (w *FulltextWorker) process(ctx context.Context, item pubmed.WorkItem) {
	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	res, err := w.fetcher.FetchFullText(callCtx, item.Record)
	if err != nil {
		w.logger.Warn("fulltext fetch failed",
			zap.String("pmid", item.ContentID),
			zap.Error(err),
		)
		metrics.ObserveArticle(checkpoint.StageFulltext, "error")
		w.deadLetter(ctx, item, err.Error())
		return
	}
	if res == nil {
		w.logger.Warn("fulltext unavailable from all sources",
			zap.String("pmid", item.ContentID),
		)
		metrics.ObserveArticle(checkpoint.StageFulltext, "exhausted")
		w.deadLetter(ctx, item, "all adapters exhausted")
		return
	}

	rec := item.Record
	rec.FullText = res.Text
	rec.FullTextSource = res.Source
	rec.ProcessingStage = pubmed.StageFulltext.String()
	rec.ProcessedAt = w.clock.Now()

	if err := store.WriteFullText(ctx, w.store, rec.PMID, *res); err != nil {
		w.logger.Warn("persist fulltext failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
		metrics.ObserveArticle(checkpoint.StageFulltext, "error")
		return
	}
	if err := store.WriteMetadata(ctx, w.store, rec); err != nil {
		w.logger.Warn("update metadata failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
	}

	w.record(ctx, checkpoint.StageFulltext)
	metrics.ObserveArticle(checkpoint.StageFulltext, "ok")

	next := pubmed.WorkItem{
		ContentID:  rec.PMID,
		Stage:      pubmed.StageChunk,
		Category:   item.Category,
		SearchTerm: item.SearchTerm,
		Record:     rec,
	}
	if err := w.router.Dispatch(ctx, next); err != nil && ctx.Err() == nil {
		w.logger.Warn("dispatch to chunk failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
	}
}

func (w *FulltextWorker) deadLetter(ctx context.Context, item pubmed.WorkItem, reason string) {
	attempts := 1
	prev, err := store.ReadDeadLetter(ctx, w.store, item.ContentID)
	if err == nil {
		attempts = prev.Attempts + 1
	} else if !errors.Is(err, store.ErrNotFound) {
		w.logger.Warn("read dead letter failed",
			zap.String("pmid", item.ContentID),
			zap.Error(err),
		)
	}

	dl := pubmed.DeadLetter{
		PMID:       item.ContentID,
		Category:   item.Category,
		SearchTerm: item.SearchTerm,
		Reason:     reason,
		Attempts:   attempts,
		LastTried:  w.clock.Now(),
	}
	if err := store.WriteDeadLetter(ctx, w.store, dl); err != nil {
		w.logger.Warn("write dead letter failed",
			zap.String("pmid", item.ContentID),
			zap.Error(err),
		)
	}
}

func (w *FulltextWorker) retryDeadLetters(ctx context.Context) {
	pmids, err := store.ListDeadLetters(ctx, w.store)
	if err != nil {
		w.logger.Warn("list dead letters failed", zap.Error(err))
		return
	}
	for _, pmid := range pmids {
		rec, err := store.ReadMetadata(ctx, w.store, pmid)
		if err != nil {
			w.logger.Warn("load dead-lettered article failed",
				zap.String("pmid", pmid),
				zap.Error(err),
			)
			metrics.ObserveDeadLetterRetry("error")
			continue
		}
		item := pubmed.WorkItem{
			ContentID:  pmid,
			Stage:      pubmed.StageFulltext,
			Category:   rec.Category,
			SearchTerm: rec.SearchTerm,
			Record:     rec,
		}
		if err := w.router.Dispatch(ctx, item); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("re-dispatch dead letter failed",
				zap.String("pmid", pmid),
				zap.Error(err),
			)
			metrics.ObserveDeadLetterRetry("error")
			continue
		}
		metrics.ObserveDeadLetterRetry("requeued")
	}
	if len(pmids) > 0 {
		w.logger.Info("re-enqueued dead-lettered articles", zap.Int("count", len(pmids)))
	}
}

func (w *FulltextWorker) record(ctx context.Context, stage string) {
	result, err := w.checkpoints.Record(ctx, stage, false)
	if err != nil {
		w.logger.Warn("checkpoint failed", zap.String("stage", stage), zap.Error(err))
		metrics.ObserveCheckpointError(stage)
		return
	}
	metrics.ObserveCheckpoint(stage, result.Committed, result.Pushed)
}
