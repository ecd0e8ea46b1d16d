package entrez

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

const efetchXML = `<?xml version="1.0" ?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">12345678</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate><Year>2024</Year><Month>Mar</Month><Day>5</Day></PubDate>
          </JournalIssue>
          <Title>Journal of Pharmaceutical Sciences</Title>
        </Journal>
        <ArticleTitle>Liposomal encapsulation of cannabidiol</ArticleTitle>
        <Abstract>
          <AbstractText Label="BACKGROUND">CBD is poorly soluble.</AbstractText>
          <AbstractText Label="RESULTS">Liposomes improved uptake.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Chen</LastName><ForeName>Wei</ForeName></Author>
          <Author><LastName>Okafor</LastName><ForeName>Ada</ForeName></Author>
        </AuthorList>
        <ELocationID EIdType="doi">10.1000/jps.2024.001</ELocationID>
      </Article>
      <KeywordList><Keyword>liposome</Keyword><Keyword> CBD </Keyword></KeywordList>
      <MeshHeadingList>
        <MeshHeading><DescriptorName>Drug Delivery Systems</DescriptorName></MeshHeading>
      </MeshHeadingList>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList><ArticleId IdType="pubmed">12345678</ArticleId></ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

func testServer(t *testing.T, esearchBody string, efetchBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch"):
			_, _ = w.Write([]byte(esearchBody))
		case strings.Contains(r.URL.Path, "efetch"):
			_, _ = w.Write([]byte(efetchBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSearchParsesArticles(t *testing.T) {
	t.Parallel()

	srv := testServer(t, `{"esearchresult":{"idlist":["12345678"]}}`, efetchXML)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	records, err := c.Search(context.Background(), "liposomes", 10, pubmed.DateRange{StartYear: 2020})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "12345678", rec.PMID)
	require.Equal(t, "Liposomal encapsulation of cannabidiol", rec.Title)
	require.Equal(t, "CBD is poorly soluble. Liposomes improved uptake.", rec.Abstract)
	require.Equal(t, []string{"Wei Chen", "Ada Okafor"}, rec.Authors)
	require.Equal(t, "Journal of Pharmaceutical Sciences", rec.Journal)
	require.Equal(t, "2024-03-05", rec.PublicationDate)
	require.Equal(t, "10.1000/jps.2024.001", rec.DOI)
	require.Equal(t, []string{"liposome", "CBD"}, rec.Keywords)
	require.Equal(t, []string{"Drug Delivery Systems"}, rec.MeshTerms)
	require.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345678/", rec.URL)
	require.Equal(t, "liposomes", rec.SearchTerm)
}

func TestSearchSendsQueryFilters(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("term")
		require.Equal(t, "2015", r.URL.Query().Get("mindate"))
		require.Equal(t, "2025", r.URL.Query().Get("maxdate"))
		_, _ = w.Write([]byte(`{"esearchresult":{"idlist":[]}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	records, err := c.Search(context.Background(), "terpene stability", 5, pubmed.DateRange{StartYear: 2015, EndYear: 2025})
	require.NoError(t, err)
	require.Empty(t, records)
	require.Contains(t, gotQuery, "terpene stability")
	require.Contains(t, gotQuery, "English[lang]")
}

func TestSearchSwallowsUpstreamErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	records, err := c.Search(context.Background(), "anything", 5, pubmed.DateRange{})
	require.NoError(t, err, "transport failures degrade to empty results")
	require.Empty(t, records)
}

func TestSearchSwallowsMalformedPayloads(t *testing.T) {
	t.Parallel()

	srv := testServer(t, `{"esearchresult":{"idlist":["1"]}}`, `not xml at all`)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	records, err := c.Search(context.Background(), "anything", 5, pubmed.DateRange{})
	require.NoError(t, err)
	require.Empty(t, records)
}
