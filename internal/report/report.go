// Package report writes scan results as CSV, HTML and per-page evidence.
package report

import (
	"time"

	"github.com/lisaapatel/partnerscan/internal/analyzer"
)

// TimeFormat renders timestamps as RFC 3339 UTC with a Z suffix.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// Page is the scan outcome of one URL.
type Page struct {
	URL        string
	FinalURL   string
	HTTPStatus int
	Title      string
	Findings   []analyzer.Finding

	// Suppressed holds findings removed by policy suppressions. They are
	// not reported; scan history keeps the count.
	Suppressed []analyzer.Finding

	// Screenshot is the screenshot path as referenced from the reports.
	Screenshot string
	Error      string
}

// PageURL is the address a reviewer should open: the final URL after
// redirects, or the requested one.
func (p Page) PageURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Run is one complete scan.
type Run struct {
	ID        string
	ScannedAt time.Time
	Pages     []Page
}

// ScannedAtISO formats the run timestamp.
func (r *Run) ScannedAtISO() string {
	return FormatTime(r.ScannedAt)
}

// TotalFindings counts findings over all pages.
func (r *Run) TotalFindings() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Findings)
	}
	return n
}

// FormatTime formats t in UTC with a Z suffix.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
