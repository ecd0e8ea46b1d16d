package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

func wordText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(words, " ")
}

func TestSplitOverlapArithmetic(t *testing.T) {
	t.Parallel()

	c := NewChunker(1000, 200)
	chunks := c.Split("12345", wordText(2500))
	require.Len(t, chunks, 3)

	require.Equal(t, 0, chunks[0].StartWord)
	require.Equal(t, 1000, chunks[0].EndWord)
	require.Equal(t, 2500, chunks[len(chunks)-1].EndWord)

	for i := 0; i < len(chunks)-1; i++ {
		require.Equal(t, chunks[i].EndWord-c.Overlap, chunks[i+1].StartWord,
			"consecutive chunks overlap by exactly %d words", c.Overlap)
	}
	for _, ch := range chunks {
		require.Equal(t, ch.EndWord-ch.StartWord, ch.WordCount)
	}
}

func TestSplitChunkIDsSequential(t *testing.T) {
	t.Parallel()

	chunks := NewChunker(1000, 200).Split("98765", wordText(1700))
	require.Len(t, chunks, 2)
	require.Equal(t, "98765_0", chunks[0].ChunkID)
	require.Equal(t, "98765_1", chunks[1].ChunkID)
}

func TestSplitDropsShortWindows(t *testing.T) {
	t.Parallel()

	c := Chunker{WindowSize: 10, Overlap: 2, MinChunkChars: 50}
	// Ten one-character words make a 19-character window.
	chunks := c.Split("11", strings.Repeat("a ", 10))
	require.Empty(t, chunks)

	for _, ch := range NewChunker(1000, 200).Split("11", wordText(2500)) {
		require.GreaterOrEqual(t, len(strings.TrimSpace(ch.Text)), DefaultMinChunkChars)
	}
}

func TestSplitStrideGuardTerminates(t *testing.T) {
	t.Parallel()

	c := Chunker{WindowSize: 5, Overlap: 10, MinChunkChars: 1}
	chunks := c.Split("11", wordText(12))
	require.Len(t, chunks, 3, "overlap >= window falls back to non-overlapping windows")
	require.Equal(t, 5, chunks[1].StartWord)
	require.Equal(t, 10, chunks[2].StartWord)
}

func TestSplitEmptyText(t *testing.T) {
	t.Parallel()

	require.Empty(t, NewChunker(1000, 200).Split("11", "   "))
}

func TestSearchableTextOmitsEmptySections(t *testing.T) {
	t.Parallel()

	rec := pubmed.ArticleRecord{
		PMID:     "11",
		Title:    "Liposomal delivery systems",
		Abstract: "A survey of liposomal carriers.",
		Keywords: []string{"liposome", "delivery"},
	}
	doc := SearchableText(rec)

	require.Equal(t, "TITLE: Liposomal delivery systems\n\n"+
		"ABSTRACT: A survey of liposomal carriers.\n\n"+
		"KEYWORDS: liposome, delivery", doc)
	require.NotContains(t, doc, "FULL_TEXT")
	require.NotContains(t, doc, "MESH_TERMS")
}

func TestSearchableTextAllSections(t *testing.T) {
	t.Parallel()

	rec := pubmed.ArticleRecord{
		Title:     "T",
		Abstract:  "A",
		FullText:  "F",
		Keywords:  []string{"k1", "k2"},
		MeshTerms: []string{"m1"},
	}
	doc := SearchableText(rec)
	require.Equal(t, []string{
		"TITLE: T",
		"ABSTRACT: A",
		"FULL_TEXT: F",
		"KEYWORDS: k1, k2",
		"MESH_TERMS: m1",
	}, strings.Split(doc, "\n\n"))
}
