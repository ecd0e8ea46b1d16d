package fulltext

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// DefaultUserAgent identifies the pipeline to article sources.
const DefaultUserAgent = "formulation-pubmed/1.0 (+https://github.com/F8ai/formulation-pubmed)"

// PMCAdapter retrieves open-access article HTML from PubMed Central
// via the PMID redirect and extracts the body text.
type PMCAdapter struct {
	base      *colly.Collector
	baseURL   string
	userAgent string
}

// NewPMC creates the PubMed Central adapter. baseURL is overridable
// for tests; empty means the public site.
func NewPMC(baseURL string, timeout time.Duration) *PMCAdapter {
	if baseURL == "" {
		baseURL = "https://pmc.ncbi.nlm.nih.gov"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	c.SetRequestTimeout(timeout)
	return &PMCAdapter{
		base:      c,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: DefaultUserAgent,
	}
}

// Name implements Adapter.
func (a *PMCAdapter) Name() string { return "pmc" }

// Fetch downloads the PMC article page for rec's PMID and extracts
// paragraph text. A 404 means PMC has no open-access copy.
func (a *PMCAdapter) Fetch(ctx context.Context, rec pubmed.ArticleRecord) (*pubmed.FullTextResult, error) {
	if rec.PMID == "" {
		return nil, nil
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := a.base.Clone()
	collector.UserAgent = a.userAgent
	collector.Context = ctx
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		fetchErr = err
	})

	url := fmt.Sprintf("%s/articles/pmid/%s/", a.baseURL, rec.PMID)
	if err := collector.Visit(url); err != nil && fetchErr == nil {
		fetchErr = err
	}
	collector.Wait()

	if status == http.StatusNotFound || status == http.StatusForbidden {
		return nil, nil
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch pmc page: %w", fetchErr)
	}
	if len(body) == 0 {
		return nil, nil
	}

	text, err := extractArticleText(body)
	if err != nil {
		return nil, fmt.Errorf("extract pmc text: %w", err)
	}
	if text == "" {
		return nil, nil
	}
	return &pubmed.FullTextResult{Text: text}, nil
}

// extractArticleText pulls paragraph text out of article HTML,
// preferring the article body containers over the whole document.
func extractArticleText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, header, footer").Remove()

	scope := doc.Find("section.body, div.article, article")
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var parts []string
	scope.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n"), nil
}
