package pipeline

import (
	"fmt"
	"strings"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// Chunking defaults. Window and overlap are in words, the minimum is
// in characters of trimmed chunk text.
const (
	DefaultWindowSize    = 1000
	DefaultOverlap       = 200
	DefaultMinChunkChars = 50
)

// Chunker splits full text into overlapping word windows for
// downstream indexing.
type Chunker struct {
	WindowSize    int
	Overlap       int
	MinChunkChars int
}

// NewChunker creates a chunker, substituting defaults for
// non-positive values.
func NewChunker(window, overlap int) Chunker {
	if window <= 0 {
		window = DefaultWindowSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return Chunker{
		WindowSize:    window,
		Overlap:       overlap,
		MinChunkChars: DefaultMinChunkChars,
	}
}

// Split cuts text into windows of WindowSize words advancing by
// WindowSize−Overlap. Windows whose trimmed text is shorter than
// MinChunkChars are discarded; emitted chunks are numbered
// sequentially.
func (c Chunker) Split(pmid, text string) []pubmed.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.WindowSize - c.Overlap
	if stride <= 0 {
		// Overlap >= window would never advance.
		stride = c.WindowSize
	}

	var chunks []pubmed.Chunk
	index := 0
	for start := 0; start < len(words); start += stride {
		end := start + c.WindowSize
		if end > len(words) {
			end = len(words)
		}
		body := strings.Join(words[start:end], " ")
		if len(strings.TrimSpace(body)) >= c.MinChunkChars {
			chunks = append(chunks, pubmed.Chunk{
				PMID:      pmid,
				ChunkID:   fmt.Sprintf("%s_%d", pmid, index),
				Text:      body,
				StartWord: start,
				EndWord:   end,
				WordCount: end - start,
			})
			index++
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}

// SearchableText concatenates the labeled sections of a record into a
// single document. Empty sections are omitted.
func SearchableText(rec pubmed.ArticleRecord) string {
	sections := []struct {
		label string
		value string
	}{
		{"TITLE", rec.Title},
		{"ABSTRACT", rec.Abstract},
		{"FULL_TEXT", rec.FullText},
		{"KEYWORDS", strings.Join(rec.Keywords, ", ")},
		{"MESH_TERMS", strings.Join(rec.MeshTerms, ", ")},
	}

	var parts []string
	for _, s := range sections {
		if strings.TrimSpace(s.value) == "" {
			continue
		}
		parts = append(parts, s.label+": "+s.value)
	}
	return strings.Join(parts, "\n\n")
}
