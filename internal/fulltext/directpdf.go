package fulltext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// DirectPDFAdapter follows the article's DOI and accepts a PDF if the
// publisher serves one directly. It is the last resort in the chain:
// most publishers answer with an HTML landing page instead.
type DirectPDFAdapter struct {
	httpClient *http.Client
	resolver   string
}

// NewDirectPDF creates the DOI-resolving PDF adapter. resolver is
// overridable for tests; empty means doi.org.
func NewDirectPDF(resolver string, timeout time.Duration) *DirectPDFAdapter {
	if resolver == "" {
		resolver = "https://doi.org"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DirectPDFAdapter{
		httpClient: &http.Client{Timeout: timeout},
		resolver:   strings.TrimRight(resolver, "/"),
	}
}

// Name implements Adapter.
func (a *DirectPDFAdapter) Name() string { return "directpdf" }

// Fetch resolves rec's DOI asking for a PDF and extracts its text when
// the response actually is one.
func (a *DirectPDFAdapter) Fetch(ctx context.Context, rec pubmed.ArticleRecord) (*pubmed.FullTextResult, error) {
	doi := strings.TrimSpace(rec.DOI)
	if doi == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.resolver+"/"+doi, nil)
	if err != nil {
		return nil, fmt.Errorf("build doi request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve doi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read doi response: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		// HTML landing page; nothing to extract here.
		return nil, nil
	}

	text, err := ExtractPDFText(data)
	if err != nil {
		return nil, fmt.Errorf("extract publisher pdf: %w", err)
	}
	return &pubmed.FullTextResult{Text: text}, nil
}
