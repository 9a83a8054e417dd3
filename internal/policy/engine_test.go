package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/lisaapatel/partnerscan/internal/analyzer"
)

const guaranteedApprovalPolicy = `
org:
  company_name_variants: ["Acme"]
qualifiers:
  disclaimers: ["subject to credit approval"]
rules:
  - id: MKT_001_GUARANTEED_APPROVAL
    taxonomy: marketing_claims
    severity: HIGH
    recommendation: Remove guaranteed approval language.
    patterns: ["guaranteed approval"]
`

func mustEngine(t *testing.T, doc string) *Engine {
	t.Helper()
	p, _, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	return NewEngine(p, nil)
}

func TestEngine_GuaranteedApproval(t *testing.T) {
	engine := mustEngine(t, guaranteedApprovalPolicy)

	findings := engine.Evaluate("Acme Bank offers guaranteed approval for everyone.", "https://example.com/")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.RuleID != "MKT_001_GUARANTEED_APPROVAL" {
		t.Errorf("expected rule MKT_001_GUARANTEED_APPROVAL, got %s", f.RuleID)
	}
	if f.MatchText != "guaranteed approval" {
		t.Errorf("expected match text %q, got %q", "guaranteed approval", f.MatchText)
	}
	if f.Severity != analyzer.SeverityHigh || f.Taxonomy != "marketing_claims" {
		t.Errorf("unexpected metadata: %+v", f)
	}
}

func TestEngine_QualifierNegates(t *testing.T) {
	doc := guaranteedApprovalPolicy + "    required_qualifiers_any: [disclaimers]\n"
	engine := mustEngine(t, doc)

	findings := engine.Evaluate("Acme Bank offers guaranteed approval, subject to credit approval.", "")
	if len(findings) != 0 {
		t.Errorf("expected qualifier to negate the finding, got %+v", findings)
	}
}

func TestEngine_EmptyText(t *testing.T) {
	engine := mustEngine(t, guaranteedApprovalPolicy)
	if findings := engine.Evaluate("", ""); len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestEngine_OffTopicPagesYieldNothing(t *testing.T) {
	doc := `
org:
  company_name_variants: ["Acme", "Acme Lending"]
rules:
  - id: ANY
    patterns: ["\\w+"]
  - id: PROX
    proximity:
      anchor_patterns: ["loan"]
      near_patterns: ["bank"]
  - id: TRIG
    trigger_patterns: ["APR"]
    required_qualifiers_any: [missing]
`
	engine := mustEngine(t, doc)

	texts := []string{
		"Guaranteed approval from Other Co, the best bank loan in town.",
		"APR 5.99% loan bank",
		"acm e lending",
		strings.Repeat("bank loan ", 50),
	}
	for _, text := range texts {
		if findings := engine.Evaluate(text, ""); len(findings) != 0 {
			t.Errorf("text %q: expected no findings on off-topic page, got %d", text, len(findings))
		}
	}
}

func TestEngine_Proximity(t *testing.T) {
	doc := `
org:
  company_name_variants: ["Upgrade"]
rules:
  - id: ROLE_001_UPGRADE_IS_BANK
    severity: HIGH
    proximity:
      anchor_patterns: ["Upgrade"]
      near_patterns: ["bank"]
      window_chars: 60
`
	engine := mustEngine(t, doc)

	findings := engine.Evaluate("Upgrade is a financial technology company, not a bank.", "")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].MatchText != "Upgrade ... bank" {
		t.Errorf("expected combined match text, got %q", findings[0].MatchText)
	}
}

func TestEngine_ProximityDefaultWindow(t *testing.T) {
	doc := `
scan:
  proximity_window_chars: 20
rules:
  - id: P
    proximity:
      anchor_patterns: ["Acme"]
      near_patterns: ["bank"]
`
	engine := mustEngine(t, doc)
	rule := engine.Registry().Rules()[0].(*analyzer.ProximityRule)
	if rule.WindowChars != 20 {
		t.Errorf("expected default window 20, got %d", rule.WindowChars)
	}

	far := "Acme" + strings.Repeat(" ", 40) + "bank"
	if findings := engine.Evaluate(far, ""); len(findings) != 0 {
		t.Errorf("expected no finding beyond the default window, got %d", len(findings))
	}
}

func TestEngine_MentionWindow(t *testing.T) {
	doc := `
org:
  company_name_variants: ["Acme"]
scan:
  upgrade_context_window_chars: 40
rules:
  - id: R1
    patterns: ["guaranteed approval"]
`
	text := "Acme." + strings.Repeat(" Lorem ipsum.", 20) + " Guaranteed approval!"

	engine := mustEngine(t, doc)
	if findings := engine.Evaluate(text, ""); len(findings) != 0 {
		t.Errorf("expected match far from a mention to be dropped, got %d", len(findings))
	}

	// The per-match gate only applies while the topic gate is on.
	relaxed := strings.Replace(doc, "scan:\n", "scan:\n  require_upgrade_context: false\n", 1)
	engine = mustEngine(t, relaxed)
	if findings := engine.Evaluate(text, ""); len(findings) != 1 {
		t.Errorf("expected 1 finding with the topic gate off, got %d", len(findings))
	}
}

func TestEngine_InvalidPatternsDropped(t *testing.T) {
	doc := `
scan:
  require_upgrade_context: false
rules:
  - id: R1
    patterns: ["(unclosed", "(?=lookahead)", "bank"]
`
	engine := mustEngine(t, doc)

	var compileErrs int
	for _, err := range engine.Issues() {
		var pce *analyzer.PatternCompileError
		if errors.As(err, &pce) {
			compileErrs++
			if pce.RuleID != "R1" {
				t.Errorf("expected rule R1 on compile error, got %s", pce.RuleID)
			}
		}
	}
	if compileErrs != 2 {
		t.Errorf("expected 2 compile errors, got %d", compileErrs)
	}
	if findings := engine.Evaluate("A bank.", ""); len(findings) != 1 {
		t.Errorf("expected remaining pattern to still match, got %d", len(findings))
	}
}

func TestEngine_UndefinedQualifierGroup(t *testing.T) {
	doc := `
scan:
  require_upgrade_context: false
rules:
  - id: T1
    trigger_patterns: ["APR"]
    required_qualifiers_any: [disclosures]
`
	engine := mustEngine(t, doc)

	var issue ValidationIssue
	found := false
	for _, err := range engine.Issues() {
		if errors.As(err, &issue) && issue.RuleID == "T1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an issue for the undefined qualifier group, got %v", engine.Issues())
	}
	if findings := engine.Evaluate("Rates from 5.99% APR.", ""); len(findings) != 1 {
		t.Errorf("expected trigger to fire without qualifiers in scope, got %d", len(findings))
	}
}

func TestEngine_SkipsNonEvaluableRules(t *testing.T) {
	doc := `
scan:
  require_upgrade_context: false
rules:
  - id: EMPTY
  - id: BOTH
    patterns: ["bank"]
    trigger_patterns: ["bank"]
  - id: OK
    patterns: ["bank"]
`
	engine := mustEngine(t, doc)
	if n := len(engine.Registry().Rules()); n != 1 {
		t.Errorf("expected 1 compiled rule, got %d", n)
	}
	findings := engine.Evaluate("bank", "")
	if len(findings) != 1 || findings[0].RuleID != "OK" {
		t.Errorf("expected only rule OK to fire, got %+v", findings)
	}
}

func TestEngine_SuppressionsApplied(t *testing.T) {
	doc := guaranteedApprovalPolicy + `
suppressions:
  - rule_id: MKT_001_GUARANTEED_APPROVAL
    url_contains: /press/
    reason: quoted in a press release
`
	engine := mustEngine(t, doc)
	text := "Acme Bank offers guaranteed approval for everyone."

	ev := engine.EvaluatePage(text, "https://example.com/press/2024")
	if len(ev.Findings) != 0 || len(ev.Suppressed) != 1 {
		t.Errorf("expected finding suppressed on press page, got %+v", ev)
	}

	ev = engine.EvaluatePage(text, "https://example.com/offers")
	if len(ev.Findings) != 1 || len(ev.Suppressed) != 0 {
		t.Errorf("expected finding kept elsewhere, got %+v", ev)
	}
	if !strings.Contains(ev.Explain(), "MKT_001_GUARANTEED_APPROVAL") {
		t.Errorf("expected explanation to name the rule, got %q", ev.Explain())
	}
}

func TestEngine_ConcurrentEvaluate(t *testing.T) {
	engine := mustEngine(t, guaranteedApprovalPolicy)
	done := make(chan int)
	for i := 0; i < 8; i++ {
		go func() {
			done <- len(engine.Evaluate("Acme offers guaranteed approval.", ""))
		}()
	}
	for i := 0; i < 8; i++ {
		if n := <-done; n != 1 {
			t.Errorf("expected 1 finding, got %d", n)
		}
	}
}
