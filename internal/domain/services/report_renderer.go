package services

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

// Static assets of the table widget
const (
	jQueryURL        = "https://code.jquery.com/jquery-3.7.1.min.js"
	dataTablesJSURL  = "https://cdn.datatables.net/1.13.8/js/jquery.dataTables.min.js"
	dataTablesCSSURL = "https://cdn.datatables.net/1.13.8/css/jquery.dataTables.min.css"
)

// DefaultReportTitle is used when RenderOptions.Title is empty
const DefaultReportTitle = "VirSorter Results"

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.CSSURL}}">
<script src="{{.JQueryURL}}"></script>
<script src="{{.DataTablesURL}}"></script>
<style>
body { font-family: Arial, Helvetica, sans-serif; margin: 1.5em; }
table.dataTable td, table.dataTable th { font-size: 0.85em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{- if .GeneratedAt}}
<p class="generated">Generated {{.GeneratedAt}}</p>
{{- end}}
<p>{{.Count}} predicted viral sequence(s)</p>
<table id="virsorter-summary" class="display" style="width:100%">
<thead>
<tr>
<th>Category</th>
{{- range .Columns}}
<th>{{.}}</th>
{{- end}}
</tr>
</thead>
<tbody>
{{- range .Rows}}
<tr>
<td>{{.Category}}</td>
{{- range .Fields}}
<td>{{.}}</td>
{{- end}}
</tr>
{{- end}}
</tbody>
</table>
<script>
$(document).ready(function() {
  $('#virsorter-summary').DataTable({ order: [], pageLength: 25 });
});
</script>
</body>
</html>
`))

// RenderOptions controls report presentation
type RenderOptions struct {
	Title string
	// GeneratedAt is printed in the page when non-zero
	GeneratedAt time.Time
}

// ReportRenderer turns summary records into a self-contained HTML page
type ReportRenderer struct{}

// NewReportRenderer creates a new report renderer
func NewReportRenderer() *ReportRenderer {
	return &ReportRenderer{}
}

type reportView struct {
	Title         string
	GeneratedAt   string
	CSSURL        string
	JQueryURL     string
	DataTablesURL string
	Columns       []string
	Rows          []*entities.SummaryRecord
	Count         int
}

// Render produces the HTML document, one table row per record in input order
func (r *ReportRenderer) Render(records []*entities.SummaryRecord, opts RenderOptions) (string, error) {
	view := reportView{
		Title:         opts.Title,
		CSSURL:        dataTablesCSSURL,
		JQueryURL:     jQueryURL,
		DataTablesURL: dataTablesJSURL,
		Columns:       entities.SummarySchema,
		Rows:          records,
		Count:         len(records),
	}
	if view.Title == "" {
		view.Title = DefaultReportTitle
	}
	if !opts.GeneratedAt.IsZero() {
		view.GeneratedAt = opts.GeneratedAt.UTC().Format(time.RFC3339)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
