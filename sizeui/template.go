// ABOUTME: HTML templates for the measurement UI
// ABOUTME: Index, report and not-found pages with shared chrome

package sizeui

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/prateek/deepsize"
)

var templateFuncs = template.FuncMap{
	"human": deepsize.HumanBytes,
}

func page(name, body string) *template.Template {
	const chrome = `<!DOCTYPE html>
<html>
<head><title>deepsize</title><style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #aaa; padding: 0.3em 0.8em; text-align: left; }
.interfered { color: #b00; }
</style></head>
<body>
`
	return template.Must(template.New(name).Funcs(templateFuncs).Parse(chrome + body + "</body></html>\n"))
}

var indexTemplate = page("index", `
<h1>Memory measurement</h1>
<h2>Roots</h2>
<ul>
{{range .Roots}}
  <li>{{.}} <form method="POST" action="scan/{{.}}" style="display:inline"><button type="submit">scan</button></form></li>
{{else}}
  <li>no roots registered</li>
{{end}}
</ul>
<h2>Reports</h2>
<ul>
{{range .Reports}}
  <li><a href="report/{{.ID}}">#{{.ID}} {{.RootName}}</a>
  {{if .Interfered}}<span class="interfered">interfered</span>{{else}}{{.Total | human}}{{end}}</li>
{{else}}
  <li>no reports yet</li>
{{end}}
</ul>
`)

var reportTemplate = page("report", `
{{with .Data}}
<h1>Report #{{.ID}}: {{.RootName}}</h1>
<p>{{.Date}} &mdash; took {{.Duration}}</p>
{{if .Interfered}}
<p class="interfered">Measurement invalidated by a concurrent garbage collection. Scan again.</p>
{{else}}
<p><b>{{.Total | human}}</b> in {{.Objects}} objects</p>
<table>
<tr><th>Type</th><th>Count</th><th>Total</th></tr>
{{range .Types}}
<tr><td>{{.Type}}</td><td>{{.Count}}</td><td>{{.Total | human}}</td></tr>
{{end}}
</table>
{{end}}
{{end}}
<p><a href="../">back</a></p>
`)

var notFoundTemplate = page("notfound", `
<h1>Not found</h1>
<p>{{.Data}}</p>
<p><a href="../">back</a></p>
`)

func serveHTML(w http.ResponseWriter, tpl *template.Template, status int, data *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	buf.WriteTo(w)
}
