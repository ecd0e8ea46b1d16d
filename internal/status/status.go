// Package status aggregates pipeline progress into a JSON report and a
// small HTML dashboard, both published as store artifacts.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/store"
)

const recentSampleSize = 10

// RecentArticle is one row of the recent-activity sample.
type RecentArticle struct {
	PMID        string    `json:"pmid"`
	Title       string    `json:"title"`
	Category    string    `json:"category,omitempty"`
	Stage       string    `json:"stage"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TextStats summarizes stored full-text lengths in characters.
type TextStats struct {
	Articles int `json:"articles"`
	MinChars int `json:"min_chars"`
	MaxChars int `json:"max_chars"`
	AvgChars int `json:"avg_chars"`
}

// Report is the aggregated pipeline status artifact.
type Report struct {
	GeneratedAt   time.Time       `json:"generated_at"`
	TotalArticles int             `json:"total_articles"`
	ByStage       map[string]int  `json:"by_stage"`
	ByCategory    map[string]int  `json:"by_category"`
	BySource      map[string]int  `json:"by_fulltext_source"`
	TotalChunks   int             `json:"total_chunks"`
	DeadLetters   int             `json:"dead_letters"`
	FullText      TextStats       `json:"full_text"`
	Recent        []RecentArticle `json:"recent"`
}

// Collector builds status reports from the durable store.
type Collector struct {
	store  store.Store
	clock  pubmed.Clock
	logger *zap.Logger
}

// NewCollector creates a status collector.
func NewCollector(st store.Store, clock pubmed.Clock, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{store: st, clock: clock, logger: logger.Named("status")}
}

// Collect scans every stored article and aggregates it into a Report.
func (c *Collector) Collect(ctx context.Context) (Report, error) {
	report := Report{
		GeneratedAt: c.clock.Now(),
		ByStage:     make(map[string]int),
		ByCategory:  make(map[string]int),
		BySource:    make(map[string]int),
	}

	pmids, err := store.ListArticleIDs(ctx, c.store)
	if err != nil {
		return Report{}, fmt.Errorf("list articles: %w", err)
	}

	var recent []RecentArticle
	for _, pmid := range pmids {
		rec, err := store.ReadMetadata(ctx, c.store, pmid)
		if err != nil {
			c.logger.Warn("skip unreadable article",
				zap.String("pmid", pmid),
				zap.Error(err),
			)
			continue
		}
		report.TotalArticles++
		report.ByStage[rec.ProcessingStage]++
		if rec.Category != "" {
			report.ByCategory[rec.Category]++
		}
		if rec.FullTextSource != "" {
			report.BySource[rec.FullTextSource]++
		}
		report.TotalChunks += rec.ChunkCount

		if text, err := store.ReadFullText(ctx, c.store, pmid); err == nil {
			n := len(text)
			report.FullText.Articles++
			if report.FullText.MinChars == 0 || n < report.FullText.MinChars {
				report.FullText.MinChars = n
			}
			if n > report.FullText.MaxChars {
				report.FullText.MaxChars = n
			}
			report.FullText.AvgChars += n
		}

		recent = append(recent, RecentArticle{
			PMID:        rec.PMID,
			Title:       rec.Title,
			Category:    rec.Category,
			Stage:       rec.ProcessingStage,
			ProcessedAt: rec.ProcessedAt,
		})
	}
	if report.FullText.Articles > 0 {
		report.FullText.AvgChars /= report.FullText.Articles
	}

	dead, err := store.ListDeadLetters(ctx, c.store)
	if err != nil {
		return Report{}, fmt.Errorf("list dead letters: %w", err)
	}
	report.DeadLetters = len(dead)

	sort.Slice(recent, func(i, j int) bool {
		return recent[i].ProcessedAt.After(recent[j].ProcessedAt)
	})
	if len(recent) > recentSampleSize {
		recent = recent[:recentSampleSize]
	}
	report.Recent = recent

	return report, nil
}

// Publish collects a fresh report and writes the JSON and HTML
// artifacts.
func (c *Collector) Publish(ctx context.Context) (Report, error) {
	report, err := c.Collect(ctx)
	if err != nil {
		return Report{}, err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return Report{}, fmt.Errorf("marshal status report: %w", err)
	}
	if err := c.store.Write(ctx, store.StatusKey, data); err != nil {
		return Report{}, fmt.Errorf("write status report: %w", err)
	}

	page, err := renderPage(report)
	if err != nil {
		return Report{}, fmt.Errorf("render status page: %w", err)
	}
	if err := c.store.Write(ctx, store.StatusPageKey, page); err != nil {
		return Report{}, fmt.Errorf("write status page: %w", err)
	}

	c.logger.Info("status published",
		zap.Int("articles", report.TotalArticles),
		zap.Int("chunks", report.TotalChunks),
		zap.Int("dead_letters", report.DeadLetters),
	)
	return report, nil
}
