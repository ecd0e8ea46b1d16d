// Package entrez implements article discovery against the NCBI
// E-utilities API: ESearch resolves a query to PMIDs, EFetch resolves
// PMIDs to article records.
package entrez

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// DefaultBaseURL is the public E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Config captures the parameters for the Entrez client.
type Config struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// APIKey raises the NCBI rate limit when set.
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Client implements pubmed.Searcher over the E-utilities HTTP API.
// Search never propagates transport or parse errors: any failure is
// logged and yields an empty result, so a broken upstream degrades
// discovery instead of failing it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// New creates an Entrez client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger.Named("entrez"),
	}
}

// Search runs ESearch then EFetch for term, bounded by maxResults and
// the publication-year range. The returned slice is empty on any
// internal error.
func (c *Client) Search(ctx context.Context, term string, maxResults int, dates pubmed.DateRange) ([]pubmed.ArticleRecord, error) {
	ids, err := c.esearch(ctx, term, maxResults, dates)
	if err != nil {
		c.logger.Warn("esearch failed", zap.String("term", term), zap.Error(err))
		return nil, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := c.efetch(ctx, ids)
	if err != nil {
		c.logger.Warn("efetch failed", zap.String("term", term), zap.Error(err))
		return nil, nil
	}
	for i := range records {
		records[i].SearchTerm = term
	}
	return records, nil
}

func (c *Client) esearch(ctx context.Context, term string, maxResults int, dates pubmed.DateRange) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {buildQuery(term)},
		"retmax":  {fmt.Sprintf("%d", maxResults)},
		"retmode": {"json"},
		"sort":    {"date"},
	}
	if dates.StartYear > 0 {
		params.Set("datetype", "pdat")
		params.Set("mindate", fmt.Sprintf("%d", dates.StartYear))
		maxYear := dates.EndYear
		if maxYear <= 0 {
			maxYear = time.Now().Year()
		}
		params.Set("maxdate", fmt.Sprintf("%d", maxYear))
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, c.baseURL+"/esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode esearch response: %w", err)
	}
	return parsed.Result.IDList, nil
}

func (c *Client) efetch(ctx context.Context, ids []string) ([]pubmed.ArticleRecord, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, c.baseURL+"/efetch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var set articleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("decode efetch response: %w", err)
	}

	records := make([]pubmed.ArticleRecord, 0, len(set.Articles))
	for _, art := range set.Articles {
		rec := art.toRecord()
		if rec.PMID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// buildQuery restricts results to English-language articles with an
// abstract.
func buildQuery(term string) string {
	return fmt.Sprintf("(%s) AND (hasabstract[text] AND English[lang])", term)
}
