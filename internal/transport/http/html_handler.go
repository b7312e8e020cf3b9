package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"skupulse/pkg/contracts"
)

// pageData is passed to the upload page template.
type pageData struct {
	Title         string
	Version       string
	Delimiter     string
	DateFormat    string
	Required      string
	MaxUploadMB   int64
	AcceptedTypes string
}

// PageSettings describes the configured ingest defaults shown on the page.
type PageSettings struct {
	Delimiter       rune
	DateFormat      string
	RequiredColumns []string
	MaxUploadBytes  int64
	Extensions      []string
}

var uploadPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; color: #222; }
fieldset { border: 1px solid #ccc; padding: 12px 16px; margin-bottom: 16px; }
label { display: inline-block; min-width: 110px; }
table { border-collapse: collapse; margin-top: 16px; }
td, th { border: 1px solid #ddd; padding: 4px 8px; text-align: right; }
th { background: #f4f4f4; }
.error { color: #a00; white-space: pre-wrap; }
#chart { max-width: 100%; margin-top: 16px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Upload a performance export. Expected columns: <code>{{.Required}}</code>,
separated by <code>{{.Delimiter}}</code>, dates as <code>{{.DateFormat}}</code>.
Maximum size {{.MaxUploadMB}} MB ({{.AcceptedTypes}}).</p>

<form id="upload">
<fieldset>
<legend>File</legend>
<input type="file" name="file" accept="{{.AcceptedTypes}}" required>
<label>Delimiter <input name="delimiter" size="6" placeholder="{{.Delimiter}}"></label>
<label>Date format <input name="date_format" size="12" placeholder="{{.DateFormat}}"></label>
<button type="submit">Upload</button>
</fieldset>
</form>

<form id="filter" hidden>
<fieldset>
<legend>Filter</legend>
<label>SKU <select name="sku"></select></label>
<label>From <input type="date" name="start"></label>
<label>To <input type="date" name="end"></label>
<button type="submit">Show</button>
<a id="csv" href="#">CSV</a> <a id="xlsx" href="#">XLSX</a>
</fieldset>
</form>

<div id="message" class="error"></div>
<img id="chart" alt="" hidden>
<table id="rows"></table>

<script>
const msg = document.getElementById('message');
const filter = document.getElementById('filter');

async function problem(resp) {
  const p = await resp.json();
  let text = p.title + ': ' + p.detail;
  if (p.missing_columns) text += '\nMissing: ' + p.missing_columns.join(', ');
  if (p.errors) text += '\n' + p.errors.map(e => e.field + ' ' + e.message).join('\n');
  return text;
}

document.getElementById('upload').addEventListener('submit', async (ev) => {
  ev.preventDefault();
  msg.textContent = '';
  const resp = await fetch('/api/uploads', {method: 'POST', body: new FormData(ev.target)});
  if (!resp.ok) { msg.textContent = await problem(resp); return; }
  const up = await resp.json();
  const sel = filter.elements.sku;
  sel.innerHTML = '';
  (up.table.keys || []).forEach(k => sel.add(new Option(k, k)));
  filter.elements.start.value = up.table.first_date || '';
  filter.elements.end.value = up.table.last_date || '';
  filter.hidden = false;
  filter.requestSubmit();
});

filter.addEventListener('submit', async (ev) => {
  ev.preventDefault();
  msg.textContent = '';
  const q = new URLSearchParams(new FormData(filter)).toString();
  document.getElementById('csv').href = '/api/table/export?format=csv&' + q;
  document.getElementById('xlsx').href = '/api/table/export?format=xlsx&' + q;
  const resp = await fetch('/api/table/rows?' + q);
  const chart = document.getElementById('chart');
  const rows = document.getElementById('rows');
  rows.innerHTML = '';
  if (!resp.ok) { chart.hidden = true; msg.textContent = await problem(resp); return; }
  chart.src = '/api/table/chart?format=png&' + q + '&t=' + Date.now();
  chart.hidden = false;
  const data = await resp.json();
  const head = rows.insertRow();
  data.columns.forEach(c => { const th = document.createElement('th'); th.textContent = c.name; head.appendChild(th); });
  data.rows.forEach(r => { const tr = rows.insertRow(); r.forEach(v => tr.insertCell().textContent = v === null ? '' : v); });
});
</script>
<footer><small>{{.Version}}</small></footer>
</body>
</html>
`))

// ServeUploadPage serves the dashboard page at GET /
func ServeUploadPage(settings PageSettings, logger *slog.Logger) http.HandlerFunc {
	delimiter := string(settings.Delimiter)
	if settings.Delimiter == '\t' {
		delimiter = "tab"
	}
	data := pageData{
		Title:         "SKU Pulse",
		Version:       contracts.GetVersionString(),
		Delimiter:     delimiter,
		DateFormat:    settings.DateFormat,
		Required:      strings.Join(settings.RequiredColumns, ", "),
		MaxUploadMB:   settings.MaxUploadBytes >> 20,
		AcceptedTypes: strings.Join(settings.Extensions, ","),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := uploadPage.Execute(w, data); err != nil {
			logger.ErrorContext(r.Context(), "failed to render upload page",
				slog.String("error", err.Error()))
			http.Error(w, "Error rendering page", http.StatusInternalServerError)
		}
	}
}
