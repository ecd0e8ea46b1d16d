package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

func discoverConfig(categories map[string][]string) DiscoverConfig {
	return DiscoverConfig{
		Categories:        categories,
		MaxResultsPerTerm: 10,
		QueryDelay:        time.Millisecond,
	}
}

func TestSweepSkipsSeenIdentifiers(t *testing.T) {
	t.Parallel()

	searcher := newFakeSearcher()
	searcher.results["liposomes"] = []pubmed.ArticleRecord{
		record("111", "Old article"),
		record("222", "New article"),
	}

	router := NewRouter(4)
	idx := NewIndex(newFakeClock())
	idx.MarkDiscovered("111")

	w := NewDiscoverWorker(searcher, router, idx, discoverConfig(map[string][]string{
		"formulation": {"liposomes"},
	}), zap.NewNop())
	require.NoError(t, w.Sweep(context.Background()))

	item, ok := drain(router.Source(pubmed.StageMetadata))
	require.True(t, ok)
	require.Equal(t, "222", item.ContentID)
	require.Equal(t, pubmed.StageMetadata, item.Stage)
	require.Equal(t, "formulation", item.Category)
	require.Equal(t, "liposomes", item.SearchTerm)

	require.Equal(t, 0, router.Depth(pubmed.StageMetadata), "111 must not be re-enqueued")
}

func TestSweepIsolatesTermFailures(t *testing.T) {
	t.Parallel()

	searcher := newFakeSearcher()
	searcher.errs["broken term"] = errors.New("upstream 500")
	searcher.results["good term"] = []pubmed.ArticleRecord{record("333", "Fine")}

	router := NewRouter(4)
	w := NewDiscoverWorker(searcher, router, NewIndex(newFakeClock()), discoverConfig(map[string][]string{
		"extraction": {"broken term", "good term"},
	}), zap.NewNop())

	require.NoError(t, w.Sweep(context.Background()), "a failing term never aborts the sweep")
	require.Len(t, searcher.Calls(), 2)

	item, ok := drain(router.Source(pubmed.StageMetadata))
	require.True(t, ok)
	require.Equal(t, "333", item.ContentID)
}

func TestSweepSkipsRecordsWithoutIdentifier(t *testing.T) {
	t.Parallel()

	searcher := newFakeSearcher()
	searcher.results["terpenes"] = []pubmed.ArticleRecord{
		{Title: "No PMID"},
		record("444", "Has PMID"),
	}

	router := NewRouter(4)
	w := NewDiscoverWorker(searcher, router, NewIndex(newFakeClock()), discoverConfig(map[string][]string{
		"chemistry": {"terpenes"},
	}), zap.NewNop())
	require.NoError(t, w.Sweep(context.Background()))

	item, ok := drain(router.Source(pubmed.StageMetadata))
	require.True(t, ok)
	require.Equal(t, "444", item.ContentID)
	require.Equal(t, 0, router.Depth(pubmed.StageMetadata))
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	searcher := newFakeSearcher()
	w := NewDiscoverWorker(searcher, NewRouter(4), NewIndex(newFakeClock()), DiscoverConfig{
		Categories: map[string][]string{"c": {"t"}},
		Interval:   time.Hour,
		QueryDelay: time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(searcher.Calls()) >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
