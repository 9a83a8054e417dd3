package analyzer

import (
	"github.com/lisaapatel/partnerscan/internal/gate"
	"github.com/lisaapatel/partnerscan/internal/textwin"
)

// Severity ranks a finding for review.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Kind names the evaluation strategy of a rule.
type Kind string

const (
	KindPattern   Kind = "patterns"
	KindProximity Kind = "proximity"
	KindTrigger   Kind = "trigger_patterns"
)

// Rule is one compiled policy rule. Each rule shape implements it and is
// evaluated in policy order by the Registry.
type Rule interface {
	// Meta returns the reporting fields shared by every shape.
	Meta() RuleMeta

	// Kind returns the rule's evaluation strategy.
	Kind() Kind

	// Analyze returns every finding of this rule in ctx.Text.
	Analyze(ctx *AnalysisContext) []Finding
}

// RuleMeta mirrors the reporting fields of policy.Rule, avoiding an import
// cycle with the policy package.
type RuleMeta struct {
	ID             string
	Taxonomy       string
	Severity       Severity
	Recommendation string
}

// Finding is one instance of a rule matching page text.
type Finding struct {
	RuleID         string   `json:"rule_id" yaml:"rule_id"`
	Taxonomy       string   `json:"taxonomy" yaml:"taxonomy"`
	Severity       Severity `json:"severity" yaml:"severity"`
	MatchText      string   `json:"match_text" yaml:"match_text"`
	Snippet        string   `json:"snippet" yaml:"snippet"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`

	// Start and End are the rune span of the match (the anchor, for
	// proximity rules).
	Start int `json:"start" yaml:"-"`
	End   int `json:"end" yaml:"-"`
}

// Settings are the scan parameters rules read while evaluating.
type Settings struct {
	SnippetChars         int
	QualifierWindowChars int
	CaseInsensitive      bool

	// RequireTopicContext drops every finding on pages that never mention
	// the partner.
	RequireTopicContext bool

	// MentionWindowChars, when > 0, requires a partner mention within this
	// window around each match.
	MentionWindowChars int
}

// AnalysisContext carries one document through all rules.
type AnalysisContext struct {
	Text     string
	Doc      *textwin.Doc
	Settings Settings
	Gate     *gate.Gate
}

// NewAnalysisContext indexes text for evaluation.
func NewAnalysisContext(text string, settings Settings, g *gate.Gate) *AnalysisContext {
	return &AnalysisContext{
		Text:     text,
		Doc:      textwin.NewDoc(text),
		Settings: settings,
		Gate:     g,
	}
}

// span converts a regexp byte location into a rune span.
func (ctx *AnalysisContext) span(loc []int) (int, int) {
	return ctx.Doc.RuneIndex(loc[0]), ctx.Doc.RuneIndex(loc[1])
}

// newFinding builds a finding for the match [start, end), or reports false
// when the per-match mention gate rejects it.
func (ctx *AnalysisContext) newFinding(meta RuleMeta, matchText string, start, end int) (Finding, bool) {
	if ctx.Settings.MentionWindowChars > 0 &&
		!ctx.Gate.IsNearMentionDoc(ctx.Doc, (start+end)/2, ctx.Settings.MentionWindowChars) {
		return Finding{}, false
	}
	return Finding{
		RuleID:         meta.ID,
		Taxonomy:       meta.Taxonomy,
		Severity:       meta.Severity,
		MatchText:      matchText,
		Snippet:        ctx.Doc.Snippet(start, end, ctx.Settings.SnippetChars),
		Recommendation: meta.Recommendation,
		Start:          start,
		End:            end,
	}, true
}
