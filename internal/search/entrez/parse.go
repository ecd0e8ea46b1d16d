package entrez

import (
	"fmt"
	"strings"
	"time"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// XML shapes for the EFetch PubmedArticleSet payload. Only the fields
// the pipeline consumes are mapped.

type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation medlineCitation `xml:"MedlineCitation"`
	Data     pubmedData      `xml:"PubmedData"`
}

type medlineCitation struct {
	PMID     string      `xml:"PMID"`
	Article  articleElem `xml:"Article"`
	Keywords []string    `xml:"KeywordList>Keyword"`
	Mesh     []string    `xml:"MeshHeadingList>MeshHeading>DescriptorName"`
}

type articleElem struct {
	Title     string       `xml:"ArticleTitle"`
	Abstract  []string     `xml:"Abstract>AbstractText"`
	Authors   []authorElem `xml:"AuthorList>Author"`
	Journal   journalElem  `xml:"Journal"`
	ELocation []idElem     `xml:"ELocationID"`
}

type authorElem struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type journalElem struct {
	Title   string      `xml:"Title"`
	PubDate pubDateElem `xml:"JournalIssue>PubDate"`
}

type pubDateElem struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type pubmedData struct {
	IDs []idElem `xml:"ArticleIdList>ArticleId"`
}

type idElem struct {
	Type  string `xml:"EIdType,attr"`
	IDTyp string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

func (a pubmedArticle) toRecord() pubmed.ArticleRecord {
	cit := a.Citation
	pmid := strings.TrimSpace(cit.PMID)

	rec := pubmed.ArticleRecord{
		PMID:            pmid,
		Title:           strings.TrimSpace(cit.Article.Title),
		Abstract:        strings.TrimSpace(strings.Join(cit.Article.Abstract, " ")),
		Journal:         strings.TrimSpace(cit.Article.Journal.Title),
		PublicationDate: cit.Article.Journal.PubDate.format(),
		Keywords:        trimAll(cit.Keywords),
		MeshTerms:       trimAll(cit.Mesh),
		URL:             fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
		ProcessingStage: pubmed.StageDiscover.String(),
	}

	for _, au := range cit.Article.Authors {
		name := strings.TrimSpace(strings.TrimSpace(au.ForeName) + " " + strings.TrimSpace(au.LastName))
		if name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}

	rec.DOI = findDOI(cit.Article.ELocation, a.Data.IDs)
	return rec
}

func (d pubDateElem) format() string {
	year := strings.TrimSpace(d.Year)
	if year == "" {
		return ""
	}
	month := monthNumber(strings.TrimSpace(d.Month))
	day := strings.TrimSpace(d.Day)
	switch {
	case month == "":
		return year
	case day == "":
		return year + "-" + month
	default:
		if len(day) == 1 {
			day = "0" + day
		}
		return year + "-" + month + "-" + day
	}
}

func monthNumber(m string) string {
	if m == "" {
		return ""
	}
	if len(m) <= 2 {
		if len(m) == 1 {
			return "0" + m
		}
		return m
	}
	if t, err := time.Parse("Jan", m[:3]); err == nil {
		return fmt.Sprintf("%02d", int(t.Month()))
	}
	return ""
}

func findDOI(elocations, articleIDs []idElem) string {
	for _, el := range elocations {
		if strings.EqualFold(el.Type, "doi") {
			return strings.TrimSpace(el.Value)
		}
	}
	for _, id := range articleIDs {
		if strings.EqualFold(id.IDTyp, "doi") {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
