// Package feeds regenerates the published RSS artifacts: a main feed
// over a sliding window, one feed per category, and a daily feed.
package feeds

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/store"
)

const (
	siteURL        = "https://pubmed.ncbi.nlm.nih.gov/"
	descriptionCap = 300
)

// Generator renders feed artifacts from the article records in the
// durable store.
type Generator struct {
	store      store.Store
	clock      pubmed.Clock
	windowDays int
	logger     *zap.Logger
}

// NewGenerator creates a feed generator with the given main-feed
// window.
func NewGenerator(st store.Store, clock pubmed.Clock, windowDays int, logger *zap.Logger) *Generator {
	if windowDays <= 0 {
		windowDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:      st,
		clock:      clock,
		windowDays: windowDays,
		logger:     logger.Named("feeds"),
	}
}

// Generate scans the store and rewrites every feed artifact. Articles
// that completed full-text retrieval or the whole pipeline are
// included, newest first.
func (g *Generator) Generate(ctx context.Context) error {
	records, err := g.loadPublishable(ctx)
	if err != nil {
		return fmt.Errorf("load publishable articles: %w", err)
	}

	now := g.clock.Now()
	windowStart := now.AddDate(0, 0, -g.windowDays)
	dayStart := now.Add(-24 * time.Hour)

	var main, daily []pubmed.ArticleRecord
	byCategory := make(map[string][]pubmed.ArticleRecord)
	for _, rec := range records {
		if rec.ProcessedAt.After(windowStart) {
			main = append(main, rec)
		}
		if rec.ProcessedAt.After(dayStart) {
			daily = append(daily, rec)
		}
		if rec.Category != "" {
			byCategory[rec.Category] = append(byCategory[rec.Category], rec)
		}
	}

	if err := g.write(ctx, "pubmed_articles", "PubMed Articles", main, now); err != nil {
		return err
	}
	if err := g.write(ctx, "daily", "PubMed Articles (Last 24 Hours)", daily, now); err != nil {
		return err
	}
	for category, recs := range byCategory {
		name := "category_" + sanitizeName(category)
		title := fmt.Sprintf("PubMed Articles: %s", category)
		if err := g.write(ctx, name, title, recs, now); err != nil {
			return err
		}
	}

	g.logger.Info("feeds regenerated",
		zap.Int("articles", len(records)),
		zap.Int("categories", len(byCategory)),
	)
	return nil
}

// loadPublishable returns articles at the Fulltext stage or beyond,
// sorted newest first.
func (g *Generator) loadPublishable(ctx context.Context) ([]pubmed.ArticleRecord, error) {
	pmids, err := store.ListArticleIDs(ctx, g.store)
	if err != nil {
		return nil, err
	}

	var records []pubmed.ArticleRecord
	for _, pmid := range pmids {
		rec, err := store.ReadMetadata(ctx, g.store, pmid)
		if err != nil {
			g.logger.Warn("skip unreadable article",
				zap.String("pmid", pmid),
				zap.Error(err),
			)
			continue
		}
		switch rec.ProcessingStage {
		case pubmed.StageFulltext.String(), pubmed.StageComplete.String():
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
	return records, nil
}

func (g *Generator) write(ctx context.Context, name, title string, records []pubmed.ArticleRecord, now time.Time) error {
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: siteURL},
		Description: "Automatically curated PubMed articles",
		Created:     now,
	}
	for _, rec := range records {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          rec.PMID,
			Title:       rec.Title,
			Link:        &feeds.Link{Href: rec.URL},
			Description: truncate(rec.Abstract, descriptionCap),
			Author:      &feeds.Author{Name: strings.Join(rec.Authors, ", ")},
			Created:     rec.ProcessedAt,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("render feed %s: %w", name, err)
	}
	if err := g.store.Write(ctx, store.FeedKey(name), []byte(rss)); err != nil {
		return fmt.Errorf("write feed %s: %w", name, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func sanitizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
