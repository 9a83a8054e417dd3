package report

import (
	"html/template"
	"io"
	"strings"
)

const htmlTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Partner Portrayal Scanner Report</title>
<style>
body { font-family: system-ui, sans-serif; margin: 1rem 2rem; }
h1 { font-size: 1.25rem; }
h2 { font-size: 1rem; margin-top: 1.5rem; }
.url { word-break: break-all; color: #055; }
.page-link { display: inline-block; margin: 0.25rem 0; padding: 0.25rem 0.5rem; background: #e8f4f8; border-radius: 4px; }
.screenshot-wrap { margin: 0.75rem 0; }
.screenshot-wrap img { max-width: 100%; width: 800px; height: auto; border: 1px solid #ccc; border-radius: 4px; }
.finding { margin: 0.5rem 0; padding: 0.5rem; background: #f5f5f5; border-radius: 4px; }
.rule-id { font-weight: bold; }
.severity-HIGH { border-left: 4px solid #c00; }
.severity-MEDIUM { border-left: 4px solid #c90; }
.match { background: #ff9; }
.error { color: #c00; }
pre.snippet { white-space: pre-wrap; font-size: 0.9rem; }
</style></head><body>
<h1>Partner Portrayal Scanner Report</h1>
<p><strong>Run ID:</strong> {{.ID}} | <strong>Scanned:</strong> {{.ScannedAt}} | <strong>Findings:</strong> {{.Total}}</p>
{{range .Pages}}<h2>URL</h2>
<p><strong>Page link:</strong> <a class="page-link" href="{{.Link}}" target="_blank" rel="noopener">{{.PageURL}}</a></p>
{{if .Redirected}}<p><strong>Requested URL:</strong> <span class="url">{{.URL}}</span></p>
{{end}}<p>Status: {{.HTTPStatus}} | Title: {{.Title}}</p>
{{if .Error}}<p class="error">Fetch failed: {{.Error}}</p>
{{end}}{{if .Screenshot}}<div class="screenshot-wrap"><strong>Screenshot of page:</strong><br><img src="{{.Screenshot}}" alt="Screenshot of {{.PageURL}}"></div>
{{end}}{{if .Findings}}<h3>Findings</h3>
{{range .Findings}}<div class="finding severity-{{.Severity}}"><span class="rule-id">{{.RuleID}}</span> [{{.Severity}}] {{.Taxonomy}}<br>
<pre class="snippet">{{.Before}}{{if .Match}}<span class="match">{{.Match}}</span>{{end}}{{.After}}</pre>
<p><strong>Recommendation:</strong> {{.Recommendation}}</p></div>
{{end}}{{else}}<p>No findings.</p>
{{end}}<hr>
{{end}}</body></html>
`

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

type htmlRun struct {
	ID        string
	ScannedAt string
	Total     int
	Pages     []htmlPage
}

type htmlPage struct {
	URL        string
	PageURL    string
	Link       template.URL
	Redirected bool
	HTTPStatus int
	Title      string
	Error      string
	Screenshot string
	Findings   []htmlFinding
}

type htmlFinding struct {
	RuleID         string
	Severity       string
	Taxonomy       string
	Recommendation string

	// Before, Match and After split the snippet around the first occurrence
	// of the match text.
	Before, Match, After string
}

// WriteHTML writes a report grouping findings per URL, with the matched
// text highlighted in each snippet.
func WriteHTML(w io.Writer, run *Run) error {
	view := htmlRun{
		ID:        run.ID,
		ScannedAt: run.ScannedAtISO(),
		Total:     run.TotalFindings(),
	}
	for _, p := range run.Pages {
		hp := htmlPage{
			URL:        p.URL,
			PageURL:    p.PageURL(),
			Link:       safeLink(p.PageURL()),
			Redirected: p.FinalURL != "" && p.FinalURL != p.URL,
			HTTPStatus: p.HTTPStatus,
			Title:      p.Title,
			Error:      p.Error,
			Screenshot: p.Screenshot,
		}
		for _, f := range p.Findings {
			hf := htmlFinding{
				RuleID:         f.RuleID,
				Severity:       string(f.Severity),
				Taxonomy:       f.Taxonomy,
				Recommendation: f.Recommendation,
			}
			hf.Before, hf.Match, hf.After = highlight(f.Snippet, f.MatchText)
			hp.Findings = append(hp.Findings, hf)
		}
		view.Pages = append(view.Pages, hp)
	}
	return reportTemplate.Execute(w, view)
}

// WriteHTMLFile writes the HTML report to path.
func WriteHTMLFile(path string, run *Run) error {
	return writeFile(path, func(w io.Writer) error { return WriteHTML(w, run) })
}

// highlight splits snippet around the first occurrence of match. When match
// is absent the whole snippet is returned as Before.
func highlight(snippet, match string) (string, string, string) {
	if match == "" {
		return snippet, "", ""
	}
	i := strings.Index(snippet, match)
	if i < 0 {
		return snippet, "", ""
	}
	return snippet[:i], match, snippet[i+len(match):]
}

// safeLink only trusts http and https URLs as link targets.
func safeLink(u string) template.URL {
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return template.URL(u)
	}
	return template.URL("#")
}
