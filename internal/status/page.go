package status

import (
	"bytes"
	"html/template"
)

var pageTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PubMed Pipeline Status</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.8em; text-align: left; }
th { background: #f0f0f0; }
h2 { margin-top: 1.5em; }
.ts { color: #666; font-size: 0.9em; }
</style>
</head>
<body>
<h1>PubMed Pipeline Status</h1>
<p class="ts">Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}</p>

<table>
<tr><th>Total articles</th><td>{{.TotalArticles}}</td></tr>
<tr><th>Total chunks</th><td>{{.TotalChunks}}</td></tr>
<tr><th>Dead letters</th><td>{{.DeadLetters}}</td></tr>
</table>

<h2>Articles by stage</h2>
<table>
<tr><th>Stage</th><th>Count</th></tr>
{{range $stage, $count := .ByStage}}<tr><td>{{$stage}}</td><td>{{$count}}</td></tr>
{{end}}</table>

<h2>Articles by category</h2>
<table>
<tr><th>Category</th><th>Count</th></tr>
{{range $category, $count := .ByCategory}}<tr><td>{{$category}}</td><td>{{$count}}</td></tr>
{{end}}</table>

<h2>Full text by source</h2>
<table>
<tr><th>Source</th><th>Count</th></tr>
{{range $source, $count := .BySource}}<tr><td>{{$source}}</td><td>{{$count}}</td></tr>
{{end}}</table>

{{if .FullText.Articles}}<h2>Full-text length (chars)</h2>
<table>
<tr><th>Articles</th><td>{{.FullText.Articles}}</td></tr>
<tr><th>Min</th><td>{{.FullText.MinChars}}</td></tr>
<tr><th>Max</th><td>{{.FullText.MaxChars}}</td></tr>
<tr><th>Avg</th><td>{{.FullText.AvgChars}}</td></tr>
</table>
{{end}}

<h2>Recent activity</h2>
<table>
<tr><th>PMID</th><th>Title</th><th>Category</th><th>Stage</th><th>Processed</th></tr>
{{range .Recent}}<tr><td>{{.PMID}}</td><td>{{.Title}}</td><td>{{.Category}}</td><td>{{.Stage}}</td><td>{{.ProcessedAt.Format "2006-01-02 15:04"}}</td></tr>
{{end}}</table>
</body>
</html>
`))

func renderPage(report Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
