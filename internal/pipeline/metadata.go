package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/store"
)

// MetadataWorker consumes Metadata-stage items: it enriches each
// record, persists the metadata and abstract artifacts, adds the
// identifier to the dedup gate, and emits the Fulltext successor. A
// record the enricher filters out is dropped without error.
type MetadataWorker struct {
	enricher    pubmed.Enricher
	store       store.Store
	index       *Index
	router      *Router
	checkpoints *checkpoint.Coordinator
	clock       pubmed.Clock
	timeout     time.Duration
	logger      *zap.Logger
}

// NewMetadataWorker creates the metadata stage consumer.
func NewMetadataWorker(enricher pubmed.Enricher, st store.Store, index *Index, router *Router, checkpoints *checkpoint.Coordinator, clock pubmed.Clock, timeout time.Duration, logger *zap.Logger) *MetadataWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataWorker{
		enricher:    enricher,
		store:       st,
		index:       index,
		router:      router,
		checkpoints: checkpoints,
		clock:       clock,
		timeout:     timeout,
		logger:      logger.Named("metadata"),
	}
}

// Run drains the Metadata channel until ctx is done. Per-item failures
// never terminate the loop.
func (w *MetadataWorker) Run(ctx context.Context) {
	in := w.router.Source(pubmed.StageMetadata)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-in:
			w.process(ctx, item)
			metrics.SetQueueDepth(pubmed.StageMetadata.String(), len(in))
		}
	}
}

func (w *MetadataWorker) process(ctx context.Context, item pubmed.WorkItem) {
	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := w.clock.Now()
	enriched, err := w.enricher.Enrich(callCtx, item.Record)
	metrics.ObserveEnrichDuration(w.clock.Now().Sub(start))
	if err != nil {
		w.logger.Warn("enrichment failed",
			zap.String("pmid", item.ContentID),
			zap.Error(err),
		)
		metrics.ObserveArticle(checkpoint.StageMetadata, "error")
		return
	}
	if enriched == nil {
		w.logger.Debug("article below relevance threshold",
			zap.String("pmid", item.ContentID),
		)
		metrics.ObserveArticle(checkpoint.StageMetadata, "filtered")
		return
	}

	rec := *enriched
	rec.Category = item.Category
	rec.SearchTerm = item.SearchTerm
	rec.ProcessingStage = pubmed.StageMetadata.String()
	rec.ProcessedAt = w.clock.Now()

	if err := store.WriteMetadata(ctx, w.store, rec); err != nil {
		w.logger.Warn("persist metadata failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
		metrics.ObserveArticle(checkpoint.StageMetadata, "error")
		return
	}
	abstractWritten := false
	if rec.Abstract != "" {
		if err := store.WriteAbstract(ctx, w.store, rec.PMID, rec.Abstract); err != nil {
			w.logger.Warn("persist abstract failed",
				zap.String("pmid", rec.PMID),
				zap.Error(err),
			)
			metrics.ObserveArticle(checkpoint.StageMetadata, "error")
			return
		}
		abstractWritten = true
	}

	w.index.MarkDiscovered(rec.PMID)
	w.record(ctx, checkpoint.StageMetadata)
	if abstractWritten {
		w.record(ctx, checkpoint.StageAbstract)
	}
	metrics.ObserveArticle(checkpoint.StageMetadata, "ok")

	next := pubmed.WorkItem{
		ContentID:  rec.PMID,
		Stage:      pubmed.StageFulltext,
		Category:   item.Category,
		SearchTerm: item.SearchTerm,
		Record:     rec,
	}
	if err := w.router.Dispatch(ctx, next); err != nil && ctx.Err() == nil {
		w.logger.Warn("dispatch to fulltext failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
	}
}

func (w *MetadataWorker) record(ctx context.Context, stage string) {
	result, err := w.checkpoints.Record(ctx, stage, false)
	if err != nil {
		w.logger.Warn("checkpoint failed", zap.String("stage", stage), zap.Error(err))
		metrics.ObserveCheckpointError(stage)
		return
	}
	metrics.ObserveCheckpoint(stage, result.Committed, result.Pushed)
}
