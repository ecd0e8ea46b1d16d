package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

func relevantRecord() pubmed.ArticleRecord {
	return pubmed.ArticleRecord{
		PMID:       "111",
		SearchTerm: "liposomal cannabidiol",
		Title:      "Liposomal cannabidiol delivery improves bioavailability",
		Abstract: "We prepared liposomal formulations of cannabidiol and measured " +
			"uptake. Liposomal cannabidiol outperformed free cannabidiol in all assays.",
		Keywords: []string{"liposomal delivery", "cannabidiol", "bioavailability"},
	}
}

func TestEnrichPassesRelevantArticle(t *testing.T) {
	t.Parallel()

	s := New(DefaultThreshold, zap.NewNop())
	out, err := s.Enrich(context.Background(), relevantRecord())
	require.NoError(t, err)
	require.NotNil(t, out)
	require.GreaterOrEqual(t, out.RelevanceScore, DefaultThreshold)
	require.LessOrEqual(t, out.RelevanceScore, 1.0)

	require.Contains(t, out.Entities["compounds"], "cannabidiol")
	require.Contains(t, out.Entities["dosage_forms"], "liposomal")
	require.NotEmpty(t, out.KeyPhrases)
}

func TestEnrichFiltersIrrelevantArticle(t *testing.T) {
	t.Parallel()

	rec := pubmed.ArticleRecord{
		PMID:       "222",
		SearchTerm: "liposomal cannabidiol",
		Title:      "Seasonal migration patterns of arctic waterfowl",
		Abstract: "We tracked several thousand birds across two breeding seasons " +
			"and report wintering site fidelity with satellite telemetry data analysis.",
	}
	s := New(DefaultThreshold, zap.NewNop())
	out, err := s.Enrich(context.Background(), rec)
	require.NoError(t, err)
	require.Nil(t, out, "irrelevant article is filtered, not errored")
}

func TestScoreLowRelevance(t *testing.T) {
	t.Parallel()

	rec := pubmed.ArticleRecord{
		SearchTerm: "nanoemulsion stability",
		Title:      "An unrelated survey of hospital administration practice",
		Abstract: "Management structures in twelve regional hospitals were compared " +
			"over a decade of administrative records and staffing level reports.",
	}
	s := New(DefaultThreshold, zap.NewNop())
	require.Less(t, s.Score(rec), 0.3)
}

func TestScoreEmptySearchTerm(t *testing.T) {
	t.Parallel()

	s := New(DefaultThreshold, zap.NewNop())
	require.Zero(t, s.Score(pubmed.ArticleRecord{Title: "Anything"}))
}

func TestExtractEntities(t *testing.T) {
	t.Parallel()

	entities := ExtractEntities("CBD and THC were quantified by HPLC after extraction; " +
		"the tincture and transdermal patch formats were compared.")
	require.ElementsMatch(t, []string{"cbd", "thc"}, entities["compounds"])
	require.ElementsMatch(t, []string{"hplc", "extraction"}, entities["methods"])
	require.ElementsMatch(t, []string{"tincture", "transdermal", "patch"}, entities["dosage_forms"])

	require.Nil(t, ExtractEntities("no domain vocabulary here"))
}
