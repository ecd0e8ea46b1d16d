package status

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	replmem "github.com/F8ai/formulation-pubmed/internal/replicate/memory"
	"github.com/F8ai/formulation-pubmed/internal/store"
	storemem "github.com/F8ai/formulation-pubmed/internal/store/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func seedPipeline(t *testing.T, st store.Store, now time.Time) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.WriteMetadata(ctx, st, pubmed.ArticleRecord{
		PMID:            "100",
		Title:           "Nanoemulsion stability study",
		Category:        "formulation",
		FullTextSource:  "pmc",
		ChunkCount:      4,
		ProcessingStage: pubmed.StageComplete.String(),
		ProcessedAt:     now.Add(-time.Hour),
	}))
	require.NoError(t, store.WriteFullText(ctx, st, "100", pubmed.FullTextResult{
		Text:        strings.Repeat("body ", 400),
		Source:      "pmc",
		RetrievedAt: now.Add(-time.Hour),
	}))

	require.NoError(t, store.WriteMetadata(ctx, st, pubmed.ArticleRecord{
		PMID:            "200",
		Title:           "Terpene profile analysis",
		Category:        "analysis",
		ProcessingStage: pubmed.StageMetadata.String(),
		ProcessedAt:     now.Add(-2 * time.Hour),
	}))
	require.NoError(t, store.WriteDeadLetter(ctx, st, pubmed.DeadLetter{
		PMID:     "200",
		Reason:   "all adapters exhausted",
		Attempts: 1,
	}))
}

func TestCollectAggregates(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	st := storemem.New()
	seedPipeline(t, st, now)

	collector := NewCollector(st, &fakeClock{now}, zap.NewNop())
	report, err := collector.Collect(context.Background())
	require.NoError(t, err)

	require.Equal(t, now, report.GeneratedAt)
	require.Equal(t, 2, report.TotalArticles)
	require.Equal(t, 1, report.ByStage[pubmed.StageComplete.String()])
	require.Equal(t, 1, report.ByStage[pubmed.StageMetadata.String()])
	require.Equal(t, 1, report.ByCategory["formulation"])
	require.Equal(t, 1, report.BySource["pmc"])
	require.Equal(t, 4, report.TotalChunks)
	require.Equal(t, 1, report.DeadLetters)
	require.Equal(t, 1, report.FullText.Articles)
	require.Equal(t, 2000, report.FullText.AvgChars)

	require.Len(t, report.Recent, 2)
	require.Equal(t, "100", report.Recent[0].PMID, "recent sample is newest first")
}

func TestRecentSampleIsCapped(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	st := storemem.New()
	for i := 0; i < 15; i++ {
		require.NoError(t, store.WriteMetadata(context.Background(), st, pubmed.ArticleRecord{
			PMID:            string(rune('a' + i)),
			ProcessingStage: pubmed.StageMetadata.String(),
			ProcessedAt:     now.Add(time.Duration(-i) * time.Minute),
		}))
	}

	collector := NewCollector(st, &fakeClock{now}, zap.NewNop())
	report, err := collector.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 15, report.TotalArticles)
	require.Len(t, report.Recent, 10)
}

func TestPublishWritesArtifacts(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	st := storemem.New()
	seedPipeline(t, st, now)

	collector := NewCollector(st, &fakeClock{now}, zap.NewNop())
	_, err := collector.Publish(context.Background())
	require.NoError(t, err)

	raw, err := st.Read(context.Background(), store.StatusKey)
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(raw, &report))
	require.Equal(t, 2, report.TotalArticles)

	page, err := st.Read(context.Background(), store.StatusPageKey)
	require.NoError(t, err)
	require.Contains(t, string(page), "Nanoemulsion stability study")
	require.Contains(t, string(page), "PubMed Pipeline Status")
}

func TestSchedulerGatesOnInterval(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	st := storemem.New()
	seedPipeline(t, st, clk.Now())

	repl := replmem.New()
	coord := checkpoint.New(repl, clk, checkpoint.Config{}, zap.NewNop())
	sched := NewScheduler(NewCollector(st, clk, zap.NewNop()), coord, clk, 30*time.Minute, zap.NewNop())

	ran, err := sched.MaybePublish(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, repl.Commits(), 1)

	clk.Advance(10 * time.Minute)
	ran, err = sched.MaybePublish(context.Background())
	require.NoError(t, err)
	require.False(t, ran)

	clk.Advance(25 * time.Minute)
	ran, err = sched.MaybePublish(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, repl.Commits(), 2)
}
