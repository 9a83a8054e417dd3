package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Columns is the CSV header, one row per finding.
var Columns = []string{
	"run_id",
	"scanned_at_iso",
	"url",
	"final_url",
	"http_status",
	"title",
	"rule_id",
	"taxonomy",
	"severity",
	"match_text",
	"snippet",
	"recommendation",
	"page_url",
	"screenshot",
}

// WriteCSV writes one row per finding. Pages without findings produce no
// rows.
func WriteCSV(w io.Writer, run *Run) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	scannedAt := run.ScannedAtISO()
	for _, page := range run.Pages {
		for _, f := range page.Findings {
			row := []string{
				run.ID,
				scannedAt,
				page.URL,
				page.FinalURL,
				strconv.Itoa(page.HTTPStatus),
				page.Title,
				f.RuleID,
				f.Taxonomy,
				string(f.Severity),
				f.MatchText,
				f.Snippet,
				f.Recommendation,
				page.PageURL(),
				page.Screenshot,
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv row for %s: %w", page.URL, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the CSV report to path.
func WriteCSVFile(path string, run *Run) error {
	return writeFile(path, func(w io.Writer) error { return WriteCSV(w, run) })
}

// writeFile creates path and closes it, reporting the first error.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return write(f)
}
