package http

import (
	"html/template"
	"net/http"
	"time"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>QuotePulse</title>
    <style>
        body { font-family: system-ui, sans-serif; margin: 40px; max-width: 720px; color: #111; }
        input[type=text] { width: 100%; padding: 8px; font-size: 16px; }
        .status { padding: 10px; margin: 10px 0; border-radius: 4px; background-color: #d1ecf1; color: #0c5460; }
    </style>
</head>
<body>
    <h1>QuotePulse</h1>
    <p>Find the earliest article quoting a phrase and how the market closed around it.</p>
    <form method="get" action="/api/analyze">
        <input type="text" name="q" value="{{.DefaultQuote}}" maxlength="2000">
        <p>
            <button type="submit">Analyze</button>
            <button type="submit" formaction="/api/analyze/export" name="format" value="csv">CSV</button>
            <button type="submit" formaction="/api/analyze/export" name="format" value="xlsx">XLSX</button>
        </p>
    </form>
    <div class="status">
        <strong>Server time:</strong> {{.Now}}
    </div>
    <h2>Endpoints</h2>
    <ul>
        <li><a href="/api/today">Today's headlines and intraday closes</a></li>
        <li><a href="/api/health/ready">Readiness</a></li>
        <li><a href="/api/version">Version</a></li>
        <li><a href="/metrics">Metrics</a></li>
    </ul>
</body>
</html>
`))

type indexData struct {
	DefaultQuote string
	Now          string
}

// ServeIndex serves the landing page with the analysis form
func ServeIndex(defaultQuote string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		data := indexData{
			DefaultQuote: defaultQuote,
			Now:          time.Now().UTC().Format("2006-01-02 15:04:05 MST"),
		}
		if err := indexTemplate.Execute(w, data); err != nil {
			http.Error(w, "Error rendering page", http.StatusInternalServerError)
			return
		}
	}
}
