package fulltext

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// ArxivAdapter looks an article up on arXiv by title and extracts text
// from its PDF. Useful for preprints that never reach PubMed Central.
type ArxivAdapter struct {
	httpClient *http.Client
	baseURL    string
}

// NewArxiv creates the arXiv adapter. baseURL is overridable for
// tests; empty means the public export API.
func NewArxiv(baseURL string, timeout time.Duration) *ArxivAdapter {
	if baseURL == "" {
		baseURL = "https://export.arxiv.org"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ArxivAdapter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name implements Adapter.
func (a *ArxivAdapter) Name() string { return "arxiv" }

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title string     `xml:"title"`
	Links []atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// Fetch searches arXiv for rec's title and, on a title match, extracts
// text from the linked PDF.
func (a *ArxivAdapter) Fetch(ctx context.Context, rec pubmed.ArticleRecord) (*pubmed.FullTextResult, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return nil, nil
	}

	query := url.Values{
		"search_query": {fmt.Sprintf("ti:%q", rec.Title)},
		"max_results":  {"1"},
	}
	feedBody, err := a.get(ctx, a.baseURL+"/api/query?"+query.Encode(), "")
	if err != nil {
		return nil, fmt.Errorf("query arxiv: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(feedBody, &feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}

	entry := feed.Entries[0]
	if !titlesMatch(entry.Title, rec.Title) {
		return nil, nil
	}
	pdfURL := ""
	for _, link := range entry.Links {
		if link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		return nil, nil
	}

	pdfData, err := a.get(ctx, pdfURL, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("download arxiv pdf: %w", err)
	}
	if !bytes.HasPrefix(pdfData, []byte("%PDF")) {
		return nil, nil
	}

	text, err := ExtractPDFText(pdfData)
	if err != nil {
		return nil, fmt.Errorf("extract arxiv pdf: %w", err)
	}
	return &pubmed.FullTextResult{Text: text}, nil
}

func (a *ArxivAdapter) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 64<<20))
}

// titlesMatch compares titles case- and whitespace-insensitively.
func titlesMatch(a, b string) bool {
	return normalizeTitle(a) == normalizeTitle(b)
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
