// Package marks reads reviewer false-positive marks and turns them into
// policy suppressions.
package marks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lisaapatel/partnerscan/internal/policy"
)

// Columns is the header a marks file is expected to carry. Only rule_id is
// required per row.
var Columns = []string{"url", "rule_id", "snippet_contains", "match_contains", "url_contains", "reason"}

// Load reads the marks file at path.
func Load(path string) ([]policy.Suppression, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses marks CSV. Rows with a blank rule_id are skipped; the url
// column fills url_contains when that column is blank.
func Read(r io.Reader) ([]policy.Suppression, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read marks header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var out []policy.Suppression
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read marks: %w", err)
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		s := policy.Suppression{
			RuleID:          get("rule_id"),
			URLContains:     get("url"),
			SnippetContains: get("snippet_contains"),
			MatchContains:   get("match_contains"),
			Reason:          get("reason"),
		}
		if s.RuleID == "" {
			continue
		}
		if uc := get("url_contains"); uc != "" {
			s.URLContains = uc
		}
		out = append(out, s)
	}
	return out, nil
}

// Template returns a header-only marks file.
func Template() string {
	return strings.Join(Columns, ",") + "\n"
}
