package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var transcriptTemplate = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(transcriptHTML))

// TemplateData holds data for transcript rendering.
type TemplateData struct {
	Title       string
	ProjectName string
	StatusLabel string
	ExportedAt  time.Time
	Entries     []Entry
}

// RenderHTML renders the transcript template.
func RenderHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return buf.String(), nil
}

const transcriptHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Georgia, serif; color: #1a1a1a; margin: 0; }
  h1 { font-size: 22px; margin-bottom: 2px; }
  .meta { color: #666; font-size: 12px; margin-bottom: 24px; }
  .comment { margin-bottom: 18px; page-break-inside: avoid; }
  .author { font-weight: bold; font-size: 13px; }
  .when { color: #888; font-size: 11px; margin-left: 8px; }
  .edited { color: #888; font-size: 11px; font-style: italic; }
  .body { font-size: 13px; margin-top: 4px; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">{{.ProjectName}} · {{.StatusLabel}} · exported {{formatDate .ExportedAt "Jan 2, 2006 15:04"}}</div>
{{range .Entries}}
<div class="comment">
  <span class="author">{{.Author}}</span>
  <span class="when">{{formatDate .CreatedAt "Jan 2, 2006 15:04"}}</span>
  {{if .Edited}}<span class="edited">(edited)</span>{{end}}
  <div class="body">{{.Content}}</div>
</div>
{{end}}
</body>
</html>`
