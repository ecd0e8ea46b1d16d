package feeds

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	replmem "github.com/F8ai/formulation-pubmed/internal/replicate/memory"
	"github.com/F8ai/formulation-pubmed/internal/store"
	storemem "github.com/F8ai/formulation-pubmed/internal/store/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func seedArticle(t *testing.T, st store.Store, pmid, category, stage string, processed time.Time) {
	t.Helper()
	err := store.WriteMetadata(context.Background(), st, pubmed.ArticleRecord{
		PMID:            pmid,
		Title:           "Article " + pmid,
		Abstract:        "Abstract for " + pmid,
		URL:             "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
		Category:        category,
		Authors:         []string{"Wei Chen"},
		ProcessingStage: stage,
		ProcessedAt:     processed,
	})
	require.NoError(t, err)
}

func TestGenerateWritesAllFeeds(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	st := storemem.New()
	seedArticle(t, st, "100", "formulation", pubmed.StageComplete.String(), now.Add(-2*time.Hour))
	seedArticle(t, st, "200", "delivery", pubmed.StageFulltext.String(), now.AddDate(0, 0, -10))
	seedArticle(t, st, "300", "formulation", pubmed.StageMetadata.String(), now.Add(-time.Hour))

	gen := NewGenerator(st, &fakeClock{now}, 30, zap.NewNop())
	require.NoError(t, gen.Generate(context.Background()))

	main, err := st.Read(context.Background(), store.FeedKey("pubmed_articles"))
	require.NoError(t, err)
	require.Contains(t, string(main), "Article 100")
	require.Contains(t, string(main), "Article 200")
	require.NotContains(t, string(main), "Article 300", "metadata-only articles are not published")

	daily, err := st.Read(context.Background(), store.FeedKey("daily"))
	require.NoError(t, err)
	require.Contains(t, string(daily), "Article 100")
	require.NotContains(t, string(daily), "Article 200", "ten-day-old article is outside the daily window")

	formulation, err := st.Read(context.Background(), store.FeedKey("category_formulation"))
	require.NoError(t, err)
	require.Contains(t, string(formulation), "Article 100")
	require.NotContains(t, string(formulation), "Article 200")
}

func TestGenerateOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	st := storemem.New()
	seedArticle(t, st, "older", "x", pubmed.StageComplete.String(), now.Add(-48*time.Hour))
	seedArticle(t, st, "newer", "x", pubmed.StageComplete.String(), now.Add(-time.Hour))

	gen := NewGenerator(st, &fakeClock{now}, 30, zap.NewNop())
	require.NoError(t, gen.Generate(context.Background()))

	main, err := st.Read(context.Background(), store.FeedKey("pubmed_articles"))
	require.NoError(t, err)
	body := string(main)
	require.Less(t, strings.Index(body, "Article newer"), strings.Index(body, "Article older"))
}

func TestSchedulerGatesOnInterval(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	st := storemem.New()
	seedArticle(t, st, "100", "x", pubmed.StageComplete.String(), clk.Now())

	repl := replmem.New()
	coord := checkpoint.New(repl, clk, checkpoint.Config{}, zap.NewNop())
	sched := NewScheduler(NewGenerator(st, clk, 30, zap.NewNop()), coord, clk, 6*time.Hour, zap.NewNop())

	ran, err := sched.MaybeGenerate(context.Background())
	require.NoError(t, err)
	require.True(t, ran, "first run always generates")
	require.Len(t, repl.Commits(), 1, "generation forces a checkpoint")
	require.Equal(t, 1, repl.Pushes())

	clk.Advance(2 * time.Hour)
	ran, err = sched.MaybeGenerate(context.Background())
	require.NoError(t, err)
	require.False(t, ran, "still inside the interval")
	require.Len(t, repl.Commits(), 1)

	clk.Advance(5 * time.Hour)
	ran, err = sched.MaybeGenerate(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, repl.Commits(), 2)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncate("short", 300))

	abstract := strings.Repeat("é", 200)
	got := truncate(abstract, 301)
	require.True(t, utf8.ValidString(got), "cut must not split a rune")
	require.Equal(t, strings.Repeat("é", 150)+"...", got)
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dosage_forms", sanitizeName("Dosage Forms"))
	require.Equal(t, "c_b_d", sanitizeName("C/B:D"))
}
