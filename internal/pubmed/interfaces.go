package pubmed

import (
	"context"
	"time"
)

// Searcher queries the external search API for records matching a term.
// Implementations return an empty slice on internal errors rather than
// propagating them; the pipeline treats an error and an empty result
// the same way.
type Searcher interface {
	Search(ctx context.Context, term string, maxResults int, dates DateRange) ([]ArticleRecord, error)
}

// Enricher scores and annotates a raw record. A nil record with a nil
// error means the article fell below the relevance threshold and
// should be dropped without a successor.
type Enricher interface {
	Enrich(ctx context.Context, rec ArticleRecord) (*ArticleRecord, error)
}

// FullTextFetcher tries an ordered list of source adapters and returns
// the first success. A nil result with a nil error means every adapter
// came up empty.
type FullTextFetcher interface {
	FetchFullText(ctx context.Context, rec ArticleRecord) (*FullTextResult, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
