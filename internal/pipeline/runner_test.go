package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pubmem "github.com/F8ai/formulation-pubmed/internal/publisher/memory"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	storemem "github.com/F8ai/formulation-pubmed/internal/store/memory"
)

func TestRunnerStartStop(t *testing.T) {
	t.Parallel()

	var started, stopped atomic.Int32
	r := NewRunner(zap.NewNop())
	for i := 0; i < 3; i++ {
		r.Add("task", TaskFunc(func(ctx context.Context) {
			started.Add(1)
			<-ctx.Done()
			stopped.Add(1)
		}))
	}

	r.Start(context.Background())
	require.Eventually(t, func() bool {
		return started.Load() == 3
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	require.Equal(t, int32(3), stopped.Load())

	// Stop again is a no-op.
	r.Stop()
}

// TestPipelineEndToEnd drives one article through every stage with the
// real workers wired over in-memory collaborators.
func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	st := storemem.New()
	clk := newFakeClock()
	idx := NewIndex(clk)
	router := NewRouter(16)
	coord := testCoordinator(clk)
	pub := pubmem.New()

	searcher := newFakeSearcher()
	searcher.results["liposomes"] = []pubmed.ArticleRecord{
		record("111", "Seen before"),
		record("222", "Brand new"),
	}
	idx.MarkDiscovered("111")

	fetcher := successFetcher(wordText(1200), "pmc")

	discover := NewDiscoverWorker(searcher, router, idx, discoverConfig(map[string][]string{
		"formulation": {"liposomes"},
	}), zap.NewNop())
	metadata := NewMetadataWorker(passthroughEnricher(), st, idx, router, coord, clk, time.Second, zap.NewNop())
	fulltext := NewFulltextWorker(fetcher, st, router, coord, clk, time.Second, time.Hour, zap.NewNop())
	chunk := NewChunkWorker(NewChunker(1000, 200), st, idx, router, pub, "", coord, clk, zap.NewNop())

	r := NewRunner(zap.NewNop())
	r.Add("metadata", metadata)
	r.Add("fulltext", fulltext)
	r.Add("chunk", chunk)
	r.Start(context.Background())
	defer r.Stop()

	require.NoError(t, discover.Sweep(context.Background()))

	require.Eventually(t, func() bool {
		return idx.IsCompleted("222")
	}, 2*time.Second, 10*time.Millisecond)

	require.False(t, idx.IsCompleted("111"), "gated article never re-entered the pipeline")
	require.Len(t, pub.Messages(), 1)

	discovered, completed := idx.Sizes()
	require.Equal(t, 2, discovered)
	require.Equal(t, 1, completed)
}
