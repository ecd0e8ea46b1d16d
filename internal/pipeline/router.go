// Package pipeline implements the progressive-enhancement pipeline:
// stage routing, deduplication, the stage workers, and the runner that
// owns their goroutines.
package pipeline

import (
	"context"
	"fmt"

	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// DefaultChannelCapacity bounds each stage channel. A full channel
// blocks the producing worker; raise this if a slow stage should be
// allowed to buffer more upstream work.
const DefaultChannelCapacity = 1000

// Router owns one channel per consuming stage and moves completed
// items into the channel of their next stage. Each stage worker drains
// exactly one channel; nothing ever pulls an item it cannot process.
type Router struct {
	metadata chan pubmed.WorkItem
	fulltext chan pubmed.WorkItem
	chunk    chan pubmed.WorkItem
}

// NewRouter creates a router with the given per-stage capacity.
func NewRouter(capacity int) *Router {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Router{
		metadata: make(chan pubmed.WorkItem, capacity),
		fulltext: make(chan pubmed.WorkItem, capacity),
		chunk:    make(chan pubmed.WorkItem, capacity),
	}
}

// Dispatch places item on the channel for its stage, blocking while
// that channel is full. Discover and Complete have no consumer; items
// at those stages are a routing bug.
func (r *Router) Dispatch(ctx context.Context, item pubmed.WorkItem) error {
	ch := r.channel(item.Stage)
	if ch == nil {
		return fmt.Errorf("no consumer for stage %s", item.Stage)
	}
	select {
	case ch <- item:
		metrics.SetQueueDepth(item.Stage.String(), len(ch))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Source returns the channel a stage worker drains. It is nil for
// stages without a consumer.
func (r *Router) Source(stage pubmed.Stage) <-chan pubmed.WorkItem {
	return r.channel(stage)
}

// Depth reports the number of items waiting at a stage.
func (r *Router) Depth(stage pubmed.Stage) int {
	ch := r.channel(stage)
	if ch == nil {
		return 0
	}
	return len(ch)
}

func (r *Router) channel(stage pubmed.Stage) chan pubmed.WorkItem {
	switch stage {
	case pubmed.StageMetadata:
		return r.metadata
	case pubmed.StageFulltext:
		return r.fulltext
	case pubmed.StageChunk:
		return r.chunk
	default:
		return nil
	}
}
