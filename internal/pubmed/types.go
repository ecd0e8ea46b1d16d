// Package pubmed defines core types shared across subsystems.
package pubmed

import "time"

// Stage represents an item's position in the enrichment sequence.
// Stages only advance forward; an item is never re-emitted at an
// earlier stage.
type Stage int

// Enrichment stages in processing order.
const (
	StageDiscover Stage = iota
	StageMetadata
	StageFulltext
	StageChunk
	StageComplete
)

var stageNames = map[Stage]string{
	StageDiscover: "discover",
	StageMetadata: "metadata",
	StageFulltext: "fulltext",
	StageChunk:    "chunk",
	StageComplete: "complete",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStage maps a persisted stage name back to its Stage value.
func ParseStage(name string) (Stage, bool) {
	for s, n := range stageNames {
		if n == name {
			return s, true
		}
	}
	return StageDiscover, false
}

// ArticleRecord is the accretive record for a single article, keyed by
// PMID. Fields fill in as stages complete: bibliographic data at
// discovery, relevance and entities at metadata, text at fulltext,
// chunk counts at completion.
type ArticleRecord struct {
	PMID            string              `json:"pmid"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Authors         []string            `json:"authors"`
	Journal         string              `json:"journal"`
	PublicationDate string              `json:"publication_date"`
	DOI             string              `json:"doi"`
	Keywords        []string            `json:"keywords"`
	MeshTerms       []string            `json:"mesh_terms"`
	URL             string              `json:"url"`
	Category        string              `json:"category,omitempty"`
	SearchTerm      string              `json:"search_term,omitempty"`
	RelevanceScore  float64             `json:"relevance_score"`
	Entities        map[string][]string `json:"extracted_entities,omitempty"`
	KeyPhrases      []string            `json:"key_phrases,omitempty"`
	FullText        string              `json:"-"`
	FullTextSource  string              `json:"fulltext_source,omitempty"`
	ChunkCount      int                 `json:"rag_chunks_count,omitempty"`
	ProcessingStage string              `json:"processing_stage"`
	ProcessedAt     time.Time           `json:"processed_at"`
}

// WorkItem carries an article through the stage router.
type WorkItem struct {
	ContentID  string
	Stage      Stage
	Category   string
	SearchTerm string
	Record     ArticleRecord
}

// FullTextResult is the outcome of a successful full-text retrieval.
type FullTextResult struct {
	Text        string    `json:"-"`
	Source      string    `json:"source"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Chunk is an overlapping word window derived from full text, for
// downstream indexing. Immutable once created, ordered by index.
type Chunk struct {
	PMID      string `json:"pmid"`
	ChunkID   string `json:"chunk_id"`
	Text      string `json:"text"`
	StartWord int    `json:"start_word"`
	EndWord   int    `json:"end_word"`
	WordCount int    `json:"word_count"`
}

// DateRange bounds a discovery search by publication year.
type DateRange struct {
	StartYear int `json:"start_year" mapstructure:"start_year"`
	EndYear   int `json:"end_year" mapstructure:"end_year"`
}

// DedupSnapshot is the persisted form of the dedup index.
type DedupSnapshot struct {
	IDs            []string  `json:"pmids"`
	CompletedIDs   []string  `json:"completed_pmids"`
	LastUpdated    time.Time `json:"last_updated"`
	TotalProcessed int       `json:"total_processed"`
}

// DeadLetter records a full-text retrieval that exhausted every
// adapter, making the item eligible for periodic re-attempts.
type DeadLetter struct {
	PMID       string    `json:"pmid"`
	Category   string    `json:"category"`
	SearchTerm string    `json:"search_term"`
	Reason     string    `json:"reason"`
	Attempts   int       `json:"attempts"`
	LastTried  time.Time `json:"last_tried"`
}
