package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/store"
	storemem "github.com/F8ai/formulation-pubmed/internal/store/memory"
)

func TestMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	st := storemem.New()
	ctx := context.Background()
	rec := pubmed.ArticleRecord{
		PMID:            "12345",
		Title:           "Terpene encapsulation",
		Authors:         []string{"Wei Chen"},
		Category:        "formulation",
		RelevanceScore:  0.8,
		ProcessingStage: pubmed.StageMetadata.String(),
		ProcessedAt:     time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.WriteMetadata(ctx, st, rec))
	got, err := store.ReadMetadata(ctx, st, "12345")
	require.NoError(t, err)
	require.Equal(t, rec, got)

	_, err = store.ReadMetadata(ctx, st, "99999")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWriteFullTextStoresTextAndSource(t *testing.T) {
	t.Parallel()

	st := storemem.New()
	ctx := context.Background()
	res := pubmed.FullTextResult{
		Text:        "the full text body",
		Source:      "pmc",
		RetrievedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.WriteFullText(ctx, st, "12345", res))

	text, err := store.ReadFullText(ctx, st, "12345")
	require.NoError(t, err)
	require.Equal(t, "the full text body", text)

	source, err := st.Read(ctx, store.FullTextSourceKey("12345"))
	require.NoError(t, err)
	require.Contains(t, string(source), `"pmc"`)
}

func TestListDeadLettersSkipsChunkedArticles(t *testing.T) {
	t.Parallel()

	st := storemem.New()
	ctx := context.Background()

	require.NoError(t, store.WriteDeadLetter(ctx, st, pubmed.DeadLetter{PMID: "111", Reason: "exhausted"}))
	require.NoError(t, store.WriteDeadLetter(ctx, st, pubmed.DeadLetter{PMID: "222", Reason: "exhausted"}))
	require.NoError(t, store.WriteChunks(ctx, st, "222", []pubmed.Chunk{{PMID: "222", ChunkID: "222_0"}}))

	pmids, err := store.ListDeadLetters(ctx, st)
	require.NoError(t, err)
	require.Equal(t, []string{"111"}, pmids, "articles that produced chunks are no longer pending")
}

func TestReadDeadLetterNotFound(t *testing.T) {
	t.Parallel()

	st := storemem.New()
	_, err := store.ReadDeadLetter(context.Background(), st, "404")
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestListArticleIDsDeduplicatesAcrossArtifacts(t *testing.T) {
	t.Parallel()

	st := storemem.New()
	ctx := context.Background()
	require.NoError(t, store.WriteMetadata(ctx, st, pubmed.ArticleRecord{PMID: "200"}))
	require.NoError(t, store.WriteAbstract(ctx, st, "200", "the abstract"))
	require.NoError(t, store.WriteMetadata(ctx, st, pubmed.ArticleRecord{PMID: "100"}))

	pmids, err := store.ListArticleIDs(ctx, st)
	require.NoError(t, err)
	require.Equal(t, []string{"100", "200"}, pmids)
}

func TestDedupSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	st := storemem.New()
	ctx := context.Background()

	snap, err := store.ReadDedupSnapshot(ctx, st)
	require.NoError(t, err, "a missing snapshot is an empty index, not an error")
	require.Empty(t, snap.IDs)

	want := pubmed.DedupSnapshot{
		IDs:            []string{"100", "200"},
		CompletedIDs:   []string{"100"},
		LastUpdated:    time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		TotalProcessed: 2,
	}
	require.NoError(t, store.WriteDedupSnapshot(ctx, st, want))

	snap, err = store.ReadDedupSnapshot(ctx, st)
	require.NoError(t, err)
	require.Equal(t, want, snap)
}
