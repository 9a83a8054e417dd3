package policy

import (
	"fmt"

	"github.com/lisaapatel/partnerscan/internal/analyzer"
	"github.com/lisaapatel/partnerscan/internal/gate"
)

// BuildRegistry compiles the policy's rules into an analyzer registry, in
// policy order. Rules that are not evaluable are left out. Invalid
// patterns are dropped and returned as *analyzer.PatternCompileError;
// references to undefined qualifier groups come back as ValidationIssue.
func BuildRegistry(p *Policy) (*analyzer.Registry, []error) {
	ci := p.Scan.CaseInsensitive
	qualifiers := analyzer.NewQualifierSet(p.Qualifiers, ci)

	var rules []analyzer.Rule
	var errs []error
	for i, r := range p.Rules {
		if !r.Evaluable() {
			continue
		}
		for _, name := range r.RequiredQualifiersAny {
			if !qualifiers.Has(name) {
				errs = append(errs, ValidationIssue{
					Where:   fmt.Sprintf("rules[%d]", i),
					RuleID:  r.ID,
					Message: fmt.Sprintf("qualifier group %q is not defined", name),
				})
			}
		}

		var rule analyzer.Rule
		var compileErrs []error
		switch r.Shape() {
		case ShapePattern:
			rule, compileErrs = convertPatternRule(r, qualifiers, ci)
		case ShapeProximity:
			rule, compileErrs = convertProximityRule(r, p.Scan.ProximityWindowChars, ci)
		case ShapeTrigger:
			rule, compileErrs = convertTriggerRule(r, qualifiers, ci)
		}
		errs = append(errs, compileErrs...)
		rules = append(rules, rule)
	}

	return analyzer.NewRegistry(rules, Settings(p.Scan), gate.New(p.Org.CompanyNameVariants, ci)), errs
}

// Settings maps scan configuration onto evaluator settings. The per-match
// mention window only applies while the page-level topic gate is on.
func Settings(sc ScanConfig) analyzer.Settings {
	s := analyzer.Settings{
		SnippetChars:         sc.SnippetChars,
		QualifierWindowChars: sc.QualifierWindowChars,
		CaseInsensitive:      sc.CaseInsensitive,
		RequireTopicContext:  sc.RequireUpgradeContext,
	}
	if sc.RequireUpgradeContext && sc.UpgradeContextWindowChars > 0 {
		s.MentionWindowChars = sc.UpgradeContextWindowChars
	}
	return s
}

func ruleMeta(r Rule) analyzer.RuleMeta {
	return analyzer.RuleMeta{
		ID:             r.ID,
		Taxonomy:       r.Taxonomy,
		Severity:       analyzer.Severity(r.Severity),
		Recommendation: r.Recommendation,
	}
}

// convertPatternRule converts a policy.Rule with patterns into an
// analyzer.PatternRule. Qualifier groups are optional here.
func convertPatternRule(r Rule, qualifiers *analyzer.QualifierSet, ci bool) (analyzer.Rule, []error) {
	patterns, errs := analyzer.CompilePatterns(r.ID, r.Patterns, ci)
	rule := &analyzer.PatternRule{RuleMeta: ruleMeta(r), Patterns: patterns}
	if len(r.RequiredQualifiersAny) > 0 {
		rule.Qualifiers = qualifiers.Resolve(r.RequiredQualifiersAny)
	}
	return rule, errs
}

// convertProximityRule converts a policy.Rule with a proximity block into
// an analyzer.ProximityRule.
func convertProximityRule(r Rule, defaultWindow int, ci bool) (analyzer.Rule, []error) {
	anchors, errs := analyzer.CompilePatterns(r.ID, r.Proximity.AnchorPatterns, ci)
	near, nearErrs := analyzer.CompilePatterns(r.ID, r.Proximity.NearPatterns, ci)
	window := r.Proximity.WindowChars
	if window == 0 {
		window = defaultWindow
	}
	return &analyzer.ProximityRule{
		RuleMeta:    ruleMeta(r),
		Anchors:     anchors,
		Near:        near,
		WindowChars: window,
	}, append(errs, nearErrs...)
}

// convertTriggerRule converts a policy.Rule with trigger_patterns into an
// analyzer.TriggerRule.
func convertTriggerRule(r Rule, qualifiers *analyzer.QualifierSet, ci bool) (analyzer.Rule, []error) {
	triggers, errs := analyzer.CompilePatterns(r.ID, r.TriggerPatterns, ci)
	return &analyzer.TriggerRule{
		RuleMeta:   ruleMeta(r),
		Triggers:   triggers,
		Qualifiers: qualifiers.Resolve(r.RequiredQualifiersAny),
	}, errs
}
