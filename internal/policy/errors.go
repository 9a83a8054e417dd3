package policy

import (
	"fmt"

	"go.uber.org/zap"
)

// LoadError is returned when a policy document cannot be read or is not a
// mapping. It is fatal to a scan run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load policy: %v", e.Err)
	}
	return fmt.Sprintf("load policy %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationIssue is a non-fatal problem found while loading a policy. The
// offending entry is skipped or defaulted; loading continues.
type ValidationIssue struct {
	Where   string
	RuleID  string
	Message string
}

func (i ValidationIssue) Error() string {
	if i.RuleID != "" {
		return fmt.Sprintf("%s (%s): %s", i.Where, i.RuleID, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Where, i.Message)
}

// LoadReport collects the validation issues of one load.
type LoadReport struct {
	Issues []ValidationIssue
}

func (r *LoadReport) add(where, ruleID, format string, args ...interface{}) {
	r.Issues = append(r.Issues, ValidationIssue{
		Where:   where,
		RuleID:  ruleID,
		Message: fmt.Sprintf(format, args...),
	})
}

// Log writes every issue as a warning.
func (r *LoadReport) Log(logger *zap.Logger) {
	if r == nil || logger == nil {
		return
	}
	for _, issue := range r.Issues {
		logger.Warn("policy issue",
			zap.String("where", issue.Where),
			zap.String("rule_id", issue.RuleID),
			zap.String("issue", issue.Message),
		)
	}
}
