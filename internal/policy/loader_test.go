package policy

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_Defaults(t *testing.T) {
	for _, doc := range []string{"", "   \n", "~\n", "# only a comment\n"} {
		p, _, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("doc %q: unexpected error: %v", doc, err)
		}
		if p.Scan != DefaultScanConfig() {
			t.Errorf("doc %q: expected default scan config, got %+v", doc, p.Scan)
		}
		if len(p.Rules) != 0 || len(p.Suppressions) != 0 {
			t.Errorf("doc %q: expected no rules or suppressions", doc)
		}
	}

	d := DefaultScanConfig()
	if d.SnippetChars != 260 || d.QualifierWindowChars != 400 || d.ProximityWindowChars != 250 ||
		!d.CaseInsensitive || d.UpgradeContextWindowChars != 0 || !d.RequireUpgradeContext {
		t.Errorf("unexpected defaults: %+v", d)
	}
}

func TestParse_NotAMapping(t *testing.T) {
	for _, doc := range []string{"- a\n- b\n", "just a string\n", "42\n"} {
		_, _, err := Parse([]byte(doc))
		var le *LoadError
		if !errors.As(err, &le) {
			t.Errorf("doc %q: expected *LoadError, got %v", doc, err)
		}
	}

	_, _, err := Parse([]byte("rules: [unclosed\n"))
	var le *LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected *LoadError for invalid YAML, got %v", err)
	}
}

func TestParse_ScanOverrides(t *testing.T) {
	doc := `
scan:
  snippet_chars: 120
  qualifier_window_chars: 0
  case_insensitive: false
  require_upgrade_context: false
  upgrade_context_window_chars: 300
`
	p, report, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Scan.SnippetChars != 120 {
		t.Errorf("expected snippet_chars 120, got %d", p.Scan.SnippetChars)
	}
	if p.Scan.QualifierWindowChars != 0 {
		t.Errorf("expected explicit 0 to be honored, got %d", p.Scan.QualifierWindowChars)
	}
	if p.Scan.ProximityWindowChars != 250 {
		t.Errorf("expected default proximity window, got %d", p.Scan.ProximityWindowChars)
	}
	if p.Scan.CaseInsensitive || p.Scan.RequireUpgradeContext {
		t.Errorf("expected explicit false to be honored: %+v", p.Scan)
	}
	if p.Scan.UpgradeContextWindowChars != 300 {
		t.Errorf("expected upgrade_context_window_chars 300, got %d", p.Scan.UpgradeContextWindowChars)
	}
	if len(report.Issues) != 0 {
		t.Errorf("expected no issues, got %v", report.Issues)
	}
}

func TestParse_UnknownAndInvalidScanKeys(t *testing.T) {
	doc := `
scan:
  snippet_chars: lots
  crawl_depth: 3
`
	p, report, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unknown scan keys must not fail the load: %v", err)
	}
	if p.Scan.SnippetChars != DefaultSnippetChars {
		t.Errorf("expected default snippet_chars after invalid value, got %d", p.Scan.SnippetChars)
	}
	if !hasIssue(report, "scan.crawl_depth") || !hasIssue(report, "scan.snippet_chars") {
		t.Errorf("expected issues for both keys, got %v", report.Issues)
	}
}

func TestParse_RuleDefaults(t *testing.T) {
	doc := `
rules:
  - patterns: ["guaranteed approval"]
  - id: R2
    severity: high
    patterns: "no credit check"
  - id: R3
    severity: CRITICAL
    patterns: ["x"]
`
	p, report, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(p.Rules))
	}
	if p.Rules[0].ID != UnknownRuleID {
		t.Errorf("expected id %s, got %s", UnknownRuleID, p.Rules[0].ID)
	}
	if p.Rules[0].Severity != SeverityMedium {
		t.Errorf("expected default severity MEDIUM, got %s", p.Rules[0].Severity)
	}
	if p.Rules[1].Severity != SeverityHigh {
		t.Errorf("expected severity HIGH, got %s", p.Rules[1].Severity)
	}
	if len(p.Rules[1].Patterns) != 1 || p.Rules[1].Patterns[0] != "no credit check" {
		t.Errorf("expected single-string patterns to become a list, got %v", p.Rules[1].Patterns)
	}
	if p.Rules[2].Severity != SeverityMedium || !hasIssue(report, "rules[2]") {
		t.Errorf("expected unknown severity to fall back to MEDIUM with an issue")
	}
}

func TestParse_RuleShapes(t *testing.T) {
	doc := `
rules:
  - id: PAT
    patterns: ["a"]
  - id: PROX
    proximity:
      anchor_patterns: ["Acme"]
      near_patterns: ["bank"]
  - id: TRIG
    trigger_patterns: ["APR"]
    required_qualifiers_any: [disclosures]
  - id: EMPTY
    taxonomy: nothing
  - id: BOTH
    patterns: ["a"]
    trigger_patterns: ["b"]
  - id: TRIG_NO_QUAL
    trigger_patterns: ["APR"]
  - id: BLANK
    patterns: [""]
`
	p, report, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		id        string
		shape     Shape
		evaluable bool
	}{
		{"PAT", ShapePattern, true},
		{"PROX", ShapeProximity, true},
		{"TRIG", ShapeTrigger, true},
		{"EMPTY", ShapeNone, false},
		{"BOTH", ShapeAmbiguous, false},
		{"TRIG_NO_QUAL", ShapeTrigger, false},
		{"BLANK", ShapeNone, false},
	}
	for i, tt := range tests {
		r := p.Rules[i]
		if r.ID != tt.id {
			t.Fatalf("rule %d: expected %s, got %s", i, tt.id, r.ID)
		}
		if r.Shape() != tt.shape {
			t.Errorf("%s: expected shape %s, got %s", tt.id, tt.shape, r.Shape())
		}
		if r.Evaluable() != tt.evaluable {
			t.Errorf("%s: expected evaluable=%v", tt.id, tt.evaluable)
		}
	}

	for _, id := range []string{"EMPTY", "BOTH", "TRIG_NO_QUAL", "BLANK"} {
		if !hasRuleIssue(report, id) {
			t.Errorf("expected a validation issue for %s", id)
		}
	}
	if hasRuleIssue(report, "PAT") {
		t.Errorf("unexpected issue for PAT")
	}
}

func TestParse_MalformedEntriesSkipped(t *testing.T) {
	doc := `
org:
  company_name_variants: ["Acme", "", "Acme Corp"]
qualifiers:
  disclaimers: ["subject to credit approval", ""]
  broken: "not a list"
rules:
  - "not a mapping"
  - id: OK
    patterns: ["ok"]
suppressions:
  - rule_id: OK
    url_contains: /blog/
  - url_contains: /no-rule/
  - rule_id: "  "
`
	p, report, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Org.CompanyNameVariants) != 2 {
		t.Errorf("expected empty variant dropped, got %v", p.Org.CompanyNameVariants)
	}
	if got := p.Qualifiers["disclaimers"]; len(got) != 1 {
		t.Errorf("expected empty phrase dropped, got %v", got)
	}
	if _, ok := p.Qualifiers["broken"]; ok {
		t.Errorf("expected non-list qualifier group to be ignored")
	}
	if len(p.Rules) != 1 || p.Rules[0].ID != "OK" {
		t.Errorf("expected only rule OK, got %+v", p.Rules)
	}
	if len(p.Suppressions) != 1 || p.Suppressions[0].RuleID != "OK" {
		t.Errorf("expected suppressions without rule_id dropped, got %+v", p.Suppressions)
	}
	if !hasIssue(report, "qualifiers.broken") || !hasIssue(report, "rules[0]") ||
		!hasIssue(report, "suppressions[1]") || !hasIssue(report, "suppressions[2]") {
		t.Errorf("missing expected issues: %v", report.Issues)
	}
}

func TestParse_DuplicateRuleIDs(t *testing.T) {
	doc := `
rules:
  - id: R1
    patterns: ["a"]
  - id: R1
    patterns: ["b"]
`
	p, report, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Rules) != 2 {
		t.Errorf("duplicates are kept, expected 2 rules, got %d", len(p.Rules))
	}
	if !hasIssue(report, "rules[1]") {
		t.Errorf("expected duplicate id issue, got %v", report.Issues)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yml")
	_, _, err := Load(path)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist in chain, got %v", err)
	}
	if le.Path != path {
		t.Errorf("expected path %s, got %s", path, le.Path)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	if err := os.WriteFile(path, []byte("rules:\n  - id: R1\n    patterns: [\"x\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p, _, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Rules) != 1 {
		t.Errorf("expected 1 rule, got %d", len(p.Rules))
	}

	if err := os.WriteFile(path, []byte("- not\n- a mapping\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err = Load(path)
	var le *LoadError
	if !errors.As(err, &le) || le.Path != path {
		t.Errorf("expected *LoadError carrying the path, got %v", err)
	}
}

func hasIssue(r *LoadReport, wherePrefix string) bool {
	for _, issue := range r.Issues {
		if strings.HasPrefix(issue.Where, wherePrefix) {
			return true
		}
	}
	return false
}

func hasRuleIssue(r *LoadReport, ruleID string) bool {
	for _, issue := range r.Issues {
		if issue.RuleID == ruleID {
			return true
		}
	}
	return false
}
