package analyzer

import (
	"strings"
	"testing"

	"github.com/lisaapatel/partnerscan/internal/gate"
)

func defaultSettings() Settings {
	return Settings{
		SnippetChars:         260,
		QualifierWindowChars: 400,
		CaseInsensitive:      true,
		RequireTopicContext:  true,
	}
}

func patternRule(t *testing.T, id string, patterns []string, qualifiers *QualifierSet, groups ...string) *PatternRule {
	t.Helper()
	compiled, errs := CompilePatterns(id, patterns, true)
	if len(errs) > 0 {
		t.Fatalf("compile %s: %v", id, errs)
	}
	r := &PatternRule{
		RuleMeta: RuleMeta{ID: id, Taxonomy: "marketing", Severity: SeverityHigh, Recommendation: "Remove the claim."},
		Patterns: compiled,
	}
	if qualifiers != nil {
		r.Qualifiers = qualifiers.Resolve(groups)
	}
	return r
}

func TestPatternRule_GuaranteedApproval(t *testing.T) {
	rule := patternRule(t, "MKT_001_GUARANTEED_APPROVAL", []string{"guaranteed approval"}, nil)
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Acme"}, true))

	findings := reg.Evaluate("Acme Bank offers guaranteed approval for everyone.")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.RuleID != "MKT_001_GUARANTEED_APPROVAL" {
		t.Errorf("expected rule MKT_001_GUARANTEED_APPROVAL, got %s", f.RuleID)
	}
	if f.MatchText != "guaranteed approval" {
		t.Errorf("expected match text %q, got %q", "guaranteed approval", f.MatchText)
	}
	if f.Snippet != "Acme Bank offers guaranteed approval for everyone." {
		t.Errorf("unexpected snippet %q", f.Snippet)
	}
	if f.Severity != SeverityHigh || f.Taxonomy != "marketing" || f.Recommendation != "Remove the claim." {
		t.Errorf("rule metadata not copied: %+v", f)
	}
}

func TestPatternRule_QualifierNegates(t *testing.T) {
	quals := NewQualifierSet(map[string][]string{"disclaimers": {"subject to credit approval"}}, true)
	rule := patternRule(t, "MKT_001_GUARANTEED_APPROVAL", []string{"guaranteed approval"}, quals, "disclaimers")
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Acme"}, true))

	findings := reg.Evaluate("Acme Bank offers guaranteed approval, subject to credit approval.")
	if len(findings) != 0 {
		t.Errorf("expected qualifier to cancel the finding, got %+v", findings)
	}

	// Qualifier outside the window does not cancel.
	far := "Acme Bank offers guaranteed approval." + strings.Repeat(" filler", 100) + " subject to credit approval."
	findings = reg.Evaluate(far)
	if len(findings) != 1 {
		t.Errorf("expected 1 finding with distant qualifier, got %d", len(findings))
	}
}

func TestPatternRule_UndefinedQualifierGroupDoesNotNegate(t *testing.T) {
	quals := NewQualifierSet(map[string][]string{}, true)
	rule := patternRule(t, "R1", []string{"guaranteed approval"}, quals, "missing")
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Acme"}, true))

	if got := len(reg.Evaluate("Acme: guaranteed approval")); got != 1 {
		t.Errorf("expected 1 finding, got %d", got)
	}
}

func TestPatternRule_AllMatchesCollected(t *testing.T) {
	rule := patternRule(t, "R1", []string{`\bbank\b`, "lender"}, nil)
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Acme"}, true))

	findings := reg.Evaluate("Acme is a bank. Acme is a BANK and a lender.")
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	expected := []string{"bank", "BANK", "lender"}
	for i, f := range findings {
		if f.MatchText != expected[i] {
			t.Errorf("finding %d: expected %q, got %q", i, expected[i], f.MatchText)
		}
	}
}

func TestProximityRule(t *testing.T) {
	anchors, _ := CompilePatterns("ROLE_001", []string{"Upgrade"}, true)
	near, _ := CompilePatterns("ROLE_001", []string{"bank"}, true)
	rule := &ProximityRule{
		RuleMeta:    RuleMeta{ID: "ROLE_001", Severity: SeverityHigh},
		Anchors:     anchors,
		Near:        near,
		WindowChars: 60,
	}
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Upgrade"}, true))

	findings := reg.Evaluate("Upgrade is a financial technology company, not a bank.")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].MatchText != "Upgrade ... bank" {
		t.Errorf("expected combined match text, got %q", findings[0].MatchText)
	}
}

func TestProximityRule_NearMatchCutByWindowEdge(t *testing.T) {
	anchors, _ := CompilePatterns("P", []string{"Upgrade"}, true)
	near, _ := CompilePatterns("P", []string{"a bank"}, true)
	rule := &ProximityRule{RuleMeta: RuleMeta{ID: "P"}, Anchors: anchors, Near: near, WindowChars: 30}
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Upgrade"}, true))

	// Window is [0, 30): "Upgrade is a company, not a ba".
	if got := reg.Evaluate("Upgrade is a company, not a bank."); len(got) != 0 {
		t.Errorf("expected near match cut by the window edge to be ignored, got %+v", got)
	}
	// Window is [0, 30): "Upgrade, not a bank. Just a co".
	if got := reg.Evaluate("Upgrade, not a bank. Just a company."); len(got) != 1 {
		t.Errorf("expected near match inside the window to count, got %d", len(got))
	}
}

func TestProximityRule_MatchTextStaysInWindow(t *testing.T) {
	anchors, _ := CompilePatterns("P", []string{"Upgrade"}, true)
	near, _ := CompilePatterns("P", []string{"company.*"}, true)
	rule := &ProximityRule{RuleMeta: RuleMeta{ID: "P"}, Anchors: anchors, Near: near, WindowChars: 18}
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Upgrade"}, true))

	// Window is [0, 18): "Upgrade is a compa". "company" never fits.
	if got := reg.Evaluate("Upgrade is a company, not a bank."); len(got) != 0 {
		t.Errorf("expected no finding, got %+v", got)
	}

	findings := reg.Evaluate("Upgrade company, not a bank.")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	// Window is [0, 18): "Upgrade company, n".
	if findings[0].MatchText != "Upgrade ... company, n" {
		t.Errorf("expected match text clipped to the window, got %q", findings[0].MatchText)
	}
}

func TestProximityRule_FirstNearPatternWins(t *testing.T) {
	anchors, _ := CompilePatterns("P", []string{"Acme"}, true)
	near, _ := CompilePatterns("P", []string{"bank", "lender"}, true)
	rule := &ProximityRule{RuleMeta: RuleMeta{ID: "P"}, Anchors: anchors, Near: near, WindowChars: 80}
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Acme"}, true))

	findings := reg.Evaluate("Acme the lender and bank.")
	if len(findings) != 1 {
		t.Fatalf("expected one finding per anchor, got %d", len(findings))
	}
	if findings[0].MatchText != "Acme ... bank" {
		t.Errorf("expected first near pattern to win, got %q", findings[0].MatchText)
	}
}

func TestProximityRule_NoNearMatch(t *testing.T) {
	anchors, _ := CompilePatterns("P", []string{"Upgrade"}, true)
	near, _ := CompilePatterns("P", []string{"bank"}, true)
	rule := &ProximityRule{RuleMeta: RuleMeta{ID: "P"}, Anchors: anchors, Near: near, WindowChars: 20}
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Upgrade"}, true))

	text := "Upgrade" + strings.Repeat(" filler", 20) + " bank."
	if got := reg.Evaluate(text); len(got) != 0 {
		t.Errorf("expected no finding when near pattern is outside the window, got %+v", got)
	}
}

func TestTriggerRule(t *testing.T) {
	quals := NewQualifierSet(map[string][]string{"apr_disclosure": {"APR ranges from", "representative example"}}, true)
	triggers, _ := CompilePatterns("DISC_001", []string{`low rates?`}, true)
	rule := &TriggerRule{
		RuleMeta:   RuleMeta{ID: "DISC_001", Severity: SeverityMedium},
		Triggers:   triggers,
		Qualifiers: quals.Resolve([]string{"apr_disclosure"}),
	}
	reg := NewRegistry([]Rule{rule}, defaultSettings(), gate.New([]string{"Acme"}, true))

	if got := reg.Evaluate("Acme personal loans with low rates!"); len(got) != 1 {
		t.Errorf("expected 1 finding without disclosure, got %d", len(got))
	}
	if got := reg.Evaluate("Acme personal loans with low rates! APR ranges from 8% to 35%."); len(got) != 0 {
		t.Errorf("expected disclosure to cancel the finding, got %d", len(got))
	}
}

func TestCompilePatterns_InvalidDropped(t *testing.T) {
	compiled, errs := CompilePatterns("R1", []string{"ok", "(unclosed", "", `(?!lookahead)`}, true)
	if len(compiled) != 1 {
		t.Errorf("expected 1 compiled pattern, got %d", len(compiled))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if _, ok := errs[0].(*PatternCompileError); !ok {
		t.Errorf("expected *PatternCompileError, got %T", errs[0])
	}
}
