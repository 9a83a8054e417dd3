package policy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lisaapatel/partnerscan/internal/analyzer"
)

// Engine evaluates page text against one loaded policy: topic gate, rules,
// then suppressions. It is safe for concurrent use.
type Engine struct {
	policy   *Policy
	registry *analyzer.Registry
	issues   []error
}

// Evaluation is the outcome for one page.
type Evaluation struct {
	Findings   []analyzer.Finding
	Suppressed []analyzer.Finding
}

// NewEngine compiles p. Compile errors and undefined qualifier groups are
// logged as warnings and kept in Issues; they never fail construction.
func NewEngine(p *Policy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry, issues := BuildRegistry(p)
	for _, err := range issues {
		logger.Warn("policy rule issue", zap.Error(err))
	}
	logger.Debug("policy compiled",
		zap.Int("rules", len(registry.Rules())),
		zap.Int("suppressions", len(p.Suppressions)),
		zap.Int("variants", len(p.Org.CompanyNameVariants)),
	)
	return &Engine{policy: p, registry: registry, issues: issues}
}

// Policy returns the engine's policy (for inspection/testing).
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Registry returns the compiled rules.
func (e *Engine) Registry() *analyzer.Registry {
	return e.registry
}

// Issues returns the non-fatal problems found while compiling.
func (e *Engine) Issues() []error {
	return e.issues
}

// Evaluate returns the unsuppressed findings for text found at pageURL.
func (e *Engine) Evaluate(text, pageURL string) []analyzer.Finding {
	return e.EvaluatePage(text, pageURL).Findings
}

// EvaluatePage is Evaluate that also reports which findings suppressions
// removed.
func (e *Engine) EvaluatePage(text, pageURL string) Evaluation {
	raw := e.registry.Evaluate(text)
	kept, suppressed := ApplySuppressions(raw, e.policy.Suppressions, pageURL, e.policy.Scan.CaseInsensitive)
	return Evaluation{Findings: kept, Suppressed: suppressed}
}

// Explain renders an evaluation for terminal output.
func (ev Evaluation) Explain() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Findings: %d", len(ev.Findings))
	if len(ev.Suppressed) > 0 {
		fmt.Fprintf(&sb, " (%d suppressed)", len(ev.Suppressed))
	}
	sb.WriteString("\n")

	for _, f := range ev.Findings {
		fmt.Fprintf(&sb, "  - [%s] %s: %q\n", f.Severity, f.RuleID, f.MatchText)
		if f.Snippet != "" {
			fmt.Fprintf(&sb, "      %s\n", f.Snippet)
		}
		if f.Recommendation != "" {
			fmt.Fprintf(&sb, "      → %s\n", f.Recommendation)
		}
	}
	return sb.String()
}
