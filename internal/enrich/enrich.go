// Package enrich scores discovered articles for relevance and extracts
// domain entities. Articles scoring below the configured threshold are
// filtered out of the pipeline.
package enrich

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// DefaultThreshold is the relevance cutoff on the normalized 0-1 score.
const DefaultThreshold = 0.3

// Scoring weights per field.
const (
	titleWeight    = 0.4
	abstractWeight = 0.4
	keywordWeight  = 0.2
)

// Scorer implements pubmed.Enricher with a keyword-density heuristic:
// the search term's words are matched against title, abstract, and
// keywords, each density scaled and capped before weighting.
type Scorer struct {
	threshold float64
	logger    *zap.Logger
}

// New creates a scorer with the given threshold; non-positive values
// fall back to DefaultThreshold.
func New(threshold float64, logger *zap.Logger) *Scorer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{threshold: threshold, logger: logger.Named("enrich")}
}

// Enrich scores rec and returns an enriched copy, or (nil, nil) when
// the score falls below the threshold.
func (s *Scorer) Enrich(_ context.Context, rec pubmed.ArticleRecord) (*pubmed.ArticleRecord, error) {
	score := s.Score(rec)
	if score < s.threshold {
		s.logger.Debug("article filtered",
			zap.String("pmid", rec.PMID),
			zap.Float64("score", score),
		)
		return nil, nil
	}

	out := rec
	out.RelevanceScore = score
	out.Entities = ExtractEntities(rec.Title + " " + rec.Abstract)
	out.KeyPhrases = keyPhrases(rec)
	return &out, nil
}

// Score computes the normalized relevance of rec against its search
// term.
func (s *Scorer) Score(rec pubmed.ArticleRecord) float64 {
	terms := queryWords(rec.SearchTerm)
	if len(terms) == 0 {
		return 0
	}

	score := titleWeight*termDensity(rec.Title, terms) +
		abstractWeight*termDensity(rec.Abstract, terms) +
		keywordWeight*keywordOverlap(rec.Keywords, terms)
	if score > 1 {
		score = 1
	}
	return score
}

// termDensity is the fraction of words in text that match a query
// word, scaled by 10 and capped at 1 so short texts with a couple of
// hits still score well.
func termDensity(text string, terms map[string]struct{}) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if _, ok := terms[strings.Trim(w, ".,;:()[]{}\"'")]; ok {
			hits++
		}
	}
	density := float64(hits) / float64(len(words)) * 10
	if density > 1 {
		density = 1
	}
	return density
}

// keywordOverlap is the fraction of author keywords containing a query
// word.
func keywordOverlap(keywords []string, terms map[string]struct{}) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range keywords {
		for _, w := range strings.Fields(strings.ToLower(kw)) {
			if _, ok := terms[w]; ok {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(keywords))
}

func queryWords(term string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(term)) {
		if len(w) > 2 && !stopwords[w] {
			words[w] = struct{}{}
		}
	}
	return words
}

func keyPhrases(rec pubmed.ArticleRecord) []string {
	seen := make(map[string]struct{})
	var phrases []string
	add := func(p string) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		phrases = append(phrases, p)
	}

	for _, kw := range rec.Keywords {
		add(kw)
	}
	for _, values := range ExtractEntities(rec.Title + " " + rec.Abstract) {
		for _, v := range values {
			add(v)
		}
	}
	sort.Strings(phrases)
	if len(phrases) > 10 {
		phrases = phrases[:10]
	}
	return phrases
}

var stopwords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "from": true,
	"into": true, "via": true, "using": true,
}
