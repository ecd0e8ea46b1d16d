package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/store"
)

// DefaultCompleteTopic is the topic completion events publish to.
const DefaultCompleteTopic = "pubmed-article-complete"

// completeEvent is the payload published when an article finishes the
// pipeline.
type completeEvent struct {
	PMID      string `json:"pmid"`
	Category  string `json:"category"`
	Chunks    int    `json:"chunks"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// ChunkWorker consumes Chunk-stage items: it splits full text into
// overlapping windows, assembles the searchable document, persists
// both, marks the article Complete, and publishes a completion event.
type ChunkWorker struct {
	chunker     Chunker
	store       store.Store
	index       *Index
	router      *Router
	publisher   pubmed.Publisher
	topic       string
	checkpoints *checkpoint.Coordinator
	clock       pubmed.Clock
	logger      *zap.Logger
}

// NewChunkWorker creates the terminal stage consumer.
func NewChunkWorker(chunker Chunker, st store.Store, index *Index, router *Router, publisher pubmed.Publisher, topic string, checkpoints *checkpoint.Coordinator, clock pubmed.Clock, logger *zap.Logger) *ChunkWorker {
	if topic == "" {
		topic = DefaultCompleteTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChunkWorker{
		chunker:     chunker,
		store:       st,
		index:       index,
		router:      router,
		publisher:   publisher,
		topic:       topic,
		checkpoints: checkpoints,
		clock:       clock,
		logger:      logger.Named("chunk"),
	}
}

// Run drains the Chunk channel until ctx is done.
func (w *ChunkWorker) Run(ctx context.Context) {
	in := w.router.Source(pubmed.StageChunk)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-in:
			w.process(ctx, item)
			metrics.SetQueueDepth(pubmed.StageChunk.String(), len(in))
		}
	}
}

func (w *ChunkWorker) process(ctx context.Context, item pubmed.WorkItem) {
	rec := item.Record
	chunks := w.chunker.Split(rec.PMID, rec.FullText)
	searchable := SearchableText(rec)

	if err := store.WriteChunks(ctx, w.store, rec.PMID, chunks); err != nil {
		w.logger.Warn("persist chunks failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
		metrics.ObserveArticle(checkpoint.StageOCR, "error")
		return
	}
	if err := store.WriteSearchableText(ctx, w.store, rec.PMID, searchable); err != nil {
		w.logger.Warn("persist searchable text failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
		metrics.ObserveArticle(checkpoint.StageOCR, "error")
		return
	}

	rec.ChunkCount = len(chunks)
	rec.ProcessingStage = pubmed.StageComplete.String()
	rec.ProcessedAt = w.clock.Now()
	if err := store.WriteMetadata(ctx, w.store, rec); err != nil {
		w.logger.Warn("mark complete failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
		metrics.ObserveArticle(checkpoint.StageOCR, "error")
		return
	}

	w.index.MarkCompleted(rec.PMID)
	w.publish(ctx, rec)
	w.record(ctx, checkpoint.StageOCR)
	metrics.ObserveArticle(checkpoint.StageOCR, "ok")
	metrics.ObserveChunks(len(chunks))

	w.logger.Info("article complete",
		zap.String("pmid", rec.PMID),
		zap.String("category", rec.Category),
		zap.Int("chunks", len(chunks)),
	)
}

func (w *ChunkWorker) publish(ctx context.Context, rec pubmed.ArticleRecord) {
	if w.publisher == nil {
		return
	}
	event := completeEvent{
		PMID:      rec.PMID,
		Category:  rec.Category,
		Chunks:    rec.ChunkCount,
		Source:    rec.FullTextSource,
		Timestamp: w.clock.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if _, err := w.publisher.Publish(ctx, w.topic, event); err != nil {
		w.logger.Warn("publish completion event failed",
			zap.String("pmid", rec.PMID),
			zap.Error(err),
		)
		metrics.ObservePublish("error")
		return
	}
	metrics.ObservePublish("ok")
}

func (w *ChunkWorker) record(ctx context.Context, stage string) {
	result, err := w.checkpoints.Record(ctx, stage, false)
	if err != nil {
		w.logger.Warn("checkpoint failed", zap.String("stage", stage), zap.Error(err))
		metrics.ObserveCheckpointError(stage)
		return
	}
	metrics.ObserveCheckpoint(stage, result.Committed, result.Pushed)
}
