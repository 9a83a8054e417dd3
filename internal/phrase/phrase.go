// Package phrase matches literal phrases (company names, qualifier phrases,
// suppression filters) inside text. Phrases are never interpreted as regular
// expressions.
package phrase

import (
	"regexp"
	"strings"
)

// Set is a compiled group of literal phrases. The zero value and a Set built
// from no non-empty phrases match nothing.
type Set struct {
	phrases []string
	re      *regexp.Regexp
}

// NewSet compiles phrases into a single alternation. Empty phrases are
// skipped.
func NewSet(phrases []string, caseInsensitive bool) *Set {
	var kept []string
	var quoted []string
	for _, p := range phrases {
		if p == "" {
			continue
		}
		kept = append(kept, p)
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	s := &Set{phrases: kept}
	if len(quoted) == 0 {
		return s
	}
	expr := strings.Join(quoted, "|")
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	s.re = regexp.MustCompile(expr)
	return s
}

// Empty reports whether the set has no phrases.
func (s *Set) Empty() bool { return s == nil || len(s.phrases) == 0 }

// Phrases returns the phrases the set was built from.
func (s *Set) Phrases() []string {
	if s == nil {
		return nil
	}
	return s.phrases
}

// ContainsAny reports whether text contains at least one phrase.
func (s *Set) ContainsAny(text string) bool {
	if s == nil || s.re == nil || text == "" {
		return false
	}
	return s.re.MatchString(text)
}

// Contains reports whether needle occurs in haystack as a literal substring.
func Contains(haystack, needle string, caseInsensitive bool) bool {
	if !caseInsensitive {
		return strings.Contains(haystack, needle)
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
