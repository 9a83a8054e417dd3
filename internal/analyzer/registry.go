package analyzer

import "github.com/lisaapatel/partnerscan/internal/gate"

// Registry is the ordered list of compiled rules for one policy. It holds
// no mutable state, so Evaluate may run concurrently on different texts.
type Registry struct {
	rules    []Rule
	settings Settings
	gate     *gate.Gate
}

// NewRegistry creates a registry. Rules are evaluated in the order given.
func NewRegistry(rules []Rule, settings Settings, g *gate.Gate) *Registry {
	if g == nil {
		g = gate.New(nil, settings.CaseInsensitive)
	}
	return &Registry{rules: rules, settings: settings, gate: g}
}

// Evaluate runs every rule over text and returns all findings, rule by rule
// in policy order. Empty text, and off-topic text when RequireTopicContext
// is set, yield no findings.
func (r *Registry) Evaluate(text string) []Finding {
	if text == "" {
		return nil
	}
	if r.settings.RequireTopicContext && !r.gate.IsTopicRelevant(text) {
		return nil
	}

	ctx := NewAnalysisContext(text, r.settings, r.gate)
	var findings []Finding
	for _, rule := range r.rules {
		findings = append(findings, rule.Analyze(ctx)...)
	}
	return findings
}

// Rules returns the registered rules (for inspection/testing).
func (r *Registry) Rules() []Rule {
	return r.rules
}

// Settings returns the scan settings the registry evaluates with.
func (r *Registry) Settings() Settings {
	return r.settings
}
