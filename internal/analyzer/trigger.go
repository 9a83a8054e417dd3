package analyzer

import (
	"regexp"

	"github.com/lisaapatel/partnerscan/internal/phrase"
)

// TriggerRule flags trigger phrases that appear without any of the required
// qualifiers nearby, e.g. an APR claim with no disclosure in sight.
type TriggerRule struct {
	RuleMeta
	Triggers   []*regexp.Regexp
	Qualifiers *phrase.Set
}

func (r *TriggerRule) Meta() RuleMeta { return r.RuleMeta }
func (r *TriggerRule) Kind() Kind     { return KindTrigger }

func (r *TriggerRule) Analyze(ctx *AnalysisContext) []Finding {
	return scanUnqualified(ctx, r.RuleMeta, r.Triggers, r.Qualifiers)
}
