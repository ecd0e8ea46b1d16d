// Package fulltext retrieves article full text by trying an ordered
// chain of source adapters: PubMed Central HTML first, then arXiv,
// then publisher PDFs reached through the DOI.
package fulltext

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// MinTextLength is the minimum character count for extracted text to
// count as a usable full text. Shorter extractions are usually paywall
// stubs or navigation chrome.
const MinTextLength = 1000

// Adapter retrieves full text from one source. A (nil, nil) return
// means the source does not have the article; errors mean the source
// failed.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, rec pubmed.ArticleRecord) (*pubmed.FullTextResult, error)
}

// Chain implements pubmed.FullTextFetcher by trying each adapter in
// order and returning the first usable result.
type Chain struct {
	adapters []Adapter
	clock    pubmed.Clock
	logger   *zap.Logger
}

// NewChain creates an adapter chain in the given preference order.
func NewChain(clock pubmed.Clock, logger *zap.Logger, adapters ...Adapter) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		adapters: adapters,
		clock:    clock,
		logger:   logger.Named("fulltext"),
	}
}

// FetchFullText tries every adapter in order. A failing adapter is
// logged and skipped; (nil, nil) means every adapter was exhausted.
func (c *Chain) FetchFullText(ctx context.Context, rec pubmed.ArticleRecord) (*pubmed.FullTextResult, error) {
	for _, adapter := range c.adapters {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res, err := adapter.Fetch(ctx, rec)
		if err != nil {
			c.logger.Debug("adapter failed",
				zap.String("adapter", adapter.Name()),
				zap.String("pmid", rec.PMID),
				zap.Error(err),
			)
			metrics.ObserveFulltextAttempt(adapter.Name(), "error")
			continue
		}
		if res == nil || len(strings.TrimSpace(res.Text)) < MinTextLength {
			metrics.ObserveFulltextAttempt(adapter.Name(), "miss")
			continue
		}
		res.Source = adapter.Name()
		res.RetrievedAt = c.clock.Now()
		metrics.ObserveFulltextAttempt(adapter.Name(), "ok")
		return res, nil
	}
	return nil, nil
}
