package analyzer

import (
	"regexp"

	"github.com/lisaapatel/partnerscan/internal/phrase"
)

// PatternRule flags every match of its patterns. When Qualifiers is set, a
// qualifier phrase inside the qualifier window cancels the match.
type PatternRule struct {
	RuleMeta
	Patterns   []*regexp.Regexp
	Qualifiers *phrase.Set
}

func (r *PatternRule) Meta() RuleMeta { return r.RuleMeta }
func (r *PatternRule) Kind() Kind     { return KindPattern }

// Analyze scans the whole text with each pattern in declaration order.
func (r *PatternRule) Analyze(ctx *AnalysisContext) []Finding {
	return scanUnqualified(ctx, r.RuleMeta, r.Patterns, r.Qualifiers)
}

// scanUnqualified emits a finding for each non-overlapping match of each
// pattern unless a qualifier phrase sits in the window around its midpoint.
func scanUnqualified(ctx *AnalysisContext, meta RuleMeta, patterns []*regexp.Regexp, qualifiers *phrase.Set) []Finding {
	var findings []Finding
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(ctx.Text, -1) {
			start, end := ctx.span(loc)
			if ctx.qualified(qualifiers, (start+end)/2) {
				continue
			}
			if f, ok := ctx.newFinding(meta, ctx.Text[loc[0]:loc[1]], start, end); ok {
				findings = append(findings, f)
			}
		}
	}
	return findings
}
