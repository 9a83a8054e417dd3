package policy

import (
	"github.com/lisaapatel/partnerscan/internal/analyzer"
	"github.com/lisaapatel/partnerscan/internal/phrase"
)

// Matches reports whether s suppresses f found on pageURL. The rule id must
// be equal; each present *_contains field must occur as a literal substring.
// A suppression carrying only a rule id therefore drops every finding of
// that rule.
func (s Suppression) Matches(f analyzer.Finding, pageURL string, caseInsensitive bool) bool {
	if s.RuleID == "" || s.RuleID != f.RuleID {
		return false
	}
	if s.URLContains != "" && !phrase.Contains(pageURL, s.URLContains, caseInsensitive) {
		return false
	}
	if s.SnippetContains != "" && !phrase.Contains(f.Snippet, s.SnippetContains, caseInsensitive) {
		return false
	}
	if s.MatchContains != "" && !phrase.Contains(f.MatchText, s.MatchContains, caseInsensitive) {
		return false
	}
	return true
}

// ApplySuppressions splits findings into those kept and those dropped by
// any suppression.
func ApplySuppressions(findings []analyzer.Finding, suppressions []Suppression, pageURL string, caseInsensitive bool) (kept, suppressed []analyzer.Finding) {
	if len(suppressions) == 0 {
		return findings, nil
	}
	for _, f := range findings {
		if isSuppressed(f, suppressions, pageURL, caseInsensitive) {
			suppressed = append(suppressed, f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, suppressed
}

func isSuppressed(f analyzer.Finding, suppressions []Suppression, pageURL string, caseInsensitive bool) bool {
	for _, s := range suppressions {
		if s.Matches(f, pageURL, caseInsensitive) {
			return true
		}
	}
	return false
}
