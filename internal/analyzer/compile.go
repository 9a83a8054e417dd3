package analyzer

import (
	"fmt"
	"regexp"
)

// PatternCompileError reports a rule pattern that is not a valid regular
// expression. The pattern is dropped; the rule keeps its other patterns.
type PatternCompileError struct {
	RuleID  string
	Pattern string
	Err     error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("rule %s: invalid pattern %q: %v", e.RuleID, e.Pattern, e.Err)
}

func (e *PatternCompileError) Unwrap() error { return e.Err }

// CompilePatterns compiles each non-empty pattern, case-insensitively when
// requested. Invalid patterns are returned as errors and left out.
func CompilePatterns(ruleID string, patterns []string, caseInsensitive bool) ([]*regexp.Regexp, []error) {
	var compiled []*regexp.Regexp
	var errs []error
	for _, p := range patterns {
		if p == "" {
			continue
		}
		expr := p
		if caseInsensitive {
			expr = "(?i)" + p
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			errs = append(errs, &PatternCompileError{RuleID: ruleID, Pattern: p, Err: err})
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled, errs
}
