package analyzer

import (
	"regexp"

	"github.com/lisaapatel/partnerscan/internal/textwin"
)

// ProximityRule flags an anchor match when one of the near patterns occurs
// within WindowChars around it.
type ProximityRule struct {
	RuleMeta
	Anchors     []*regexp.Regexp
	Near        []*regexp.Regexp
	WindowChars int
}

func (r *ProximityRule) Meta() RuleMeta { return r.RuleMeta }
func (r *ProximityRule) Kind() Kind     { return KindProximity }

// Analyze emits at most one finding per anchor occurrence: the first near
// pattern (in declaration order) found in the anchor's window wins. Near
// patterns only see the window text, so a match cut by the window edge does
// not count.
func (r *ProximityRule) Analyze(ctx *AnalysisContext) []Finding {
	var findings []Finding
	for _, anchor := range r.Anchors {
		for _, loc := range anchor.FindAllStringIndex(ctx.Text, -1) {
			start, end := ctx.span(loc)
			ws, we := textwin.Bounds(ctx.Doc.Len(), (start+end)/2, r.WindowChars)
			if ws == we {
				continue
			}
			window := ctx.Text[ctx.Doc.ByteOffset(ws):ctx.Doc.ByteOffset(we)]
			for _, near := range r.Near {
				nloc := near.FindStringIndex(window)
				if nloc == nil {
					continue
				}
				matchText := ctx.Text[loc[0]:loc[1]] + " ... " + window[nloc[0]:nloc[1]]
				if f, ok := ctx.newFinding(r.RuleMeta, matchText, start, end); ok {
					findings = append(findings, f)
				}
				break
			}
		}
	}
	return findings
}
