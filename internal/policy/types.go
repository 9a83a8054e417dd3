package policy

// Policy is the parsed rule policy document. It is read-only once a scan
// starts.
type Policy struct {
	Org          Org                 `yaml:"org"`
	Qualifiers   map[string][]string `yaml:"qualifiers"`
	Scan         ScanConfig          `yaml:"scan"`
	Rules        []Rule              `yaml:"rules"`
	Suppressions []Suppression       `yaml:"suppressions"`
}

type Org struct {
	CompanyNameVariants []string `yaml:"company_name_variants"`
}

// ScanConfig holds the windowing and gating parameters shared by all rules.
type ScanConfig struct {
	SnippetChars              int  `yaml:"snippet_chars"`
	QualifierWindowChars      int  `yaml:"qualifier_window_chars"`
	ProximityWindowChars      int  `yaml:"proximity_window_chars"`
	CaseInsensitive           bool `yaml:"case_insensitive"`
	UpgradeContextWindowChars int  `yaml:"upgrade_context_window_chars"`
	RequireUpgradeContext     bool `yaml:"require_upgrade_context"`
}

const (
	DefaultSnippetChars              = 260
	DefaultQualifierWindowChars      = 400
	DefaultProximityWindowChars      = 250
	DefaultUpgradeContextWindowChars = 0

	// UnknownRuleID is assigned to rules that omit an id.
	UnknownRuleID = "UNKNOWN"
)

// DefaultScanConfig returns the scan settings used for absent keys.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		SnippetChars:              DefaultSnippetChars,
		QualifierWindowChars:      DefaultQualifierWindowChars,
		ProximityWindowChars:      DefaultProximityWindowChars,
		CaseInsensitive:           true,
		UpgradeContextWindowChars: DefaultUpgradeContextWindowChars,
		RequireUpgradeContext:     true,
	}
}

// DefaultPolicy is the policy of an empty document: default scan settings
// and no rules.
func DefaultPolicy() *Policy {
	return &Policy{
		Qualifiers: map[string][]string{},
		Scan:       DefaultScanConfig(),
	}
}

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

type Rule struct {
	ID             string   `yaml:"id"`
	Taxonomy       string   `yaml:"taxonomy,omitempty"`
	Severity       Severity `yaml:"severity,omitempty"`
	Recommendation string   `yaml:"recommendation,omitempty"`

	Patterns              StringOrList `yaml:"patterns,omitempty"`
	Proximity             *Proximity   `yaml:"proximity,omitempty"`
	TriggerPatterns       StringOrList `yaml:"trigger_patterns,omitempty"`
	RequiredQualifiersAny StringOrList `yaml:"required_qualifiers_any,omitempty"`
}

// Proximity pairs anchor patterns with patterns that must occur near them.
// A zero WindowChars falls back to scan.proximity_window_chars.
type Proximity struct {
	AnchorPatterns StringOrList `yaml:"anchor_patterns"`
	NearPatterns   StringOrList `yaml:"near_patterns"`
	WindowChars    int          `yaml:"window_chars,omitempty"`
}

// Shape is the evaluation strategy a rule entry selects.
type Shape int

const (
	ShapeNone Shape = iota
	ShapePattern
	ShapeProximity
	ShapeTrigger
	ShapeAmbiguous
)

func (s Shape) String() string {
	switch s {
	case ShapePattern:
		return "patterns"
	case ShapeProximity:
		return "proximity"
	case ShapeTrigger:
		return "trigger_patterns"
	case ShapeAmbiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// Shape reports which strategy the rule populates. A rule populating more
// than one of patterns, proximity and trigger_patterns is ambiguous.
func (r Rule) Shape() Shape {
	var shapes []Shape
	if len(r.Patterns) > 0 {
		shapes = append(shapes, ShapePattern)
	}
	if r.Proximity != nil {
		shapes = append(shapes, ShapeProximity)
	}
	if len(r.TriggerPatterns) > 0 {
		shapes = append(shapes, ShapeTrigger)
	}
	switch len(shapes) {
	case 0:
		return ShapeNone
	case 1:
		return shapes[0]
	default:
		return ShapeAmbiguous
	}
}

// Suppression marks findings as known false positives. Every present
// condition must hold for a finding to be dropped. Reason is documentation
// only.
type Suppression struct {
	RuleID          string `yaml:"rule_id"`
	URLContains     string `yaml:"url_contains,omitempty"`
	SnippetContains string `yaml:"snippet_contains,omitempty"`
	MatchContains   string `yaml:"match_contains,omitempty"`
	Reason          string `yaml:"reason,omitempty"`
}

// SuppressionKey identifies a suppression for deduplication. Absent fields
// are empty strings.
type SuppressionKey struct {
	RuleID          string
	SnippetContains string
	MatchContains   string
	URLContains     string
}

func (s Suppression) Key() SuppressionKey {
	return SuppressionKey{
		RuleID:          s.RuleID,
		SnippetContains: s.SnippetContains,
		MatchContains:   s.MatchContains,
		URLContains:     s.URLContains,
	}
}

// StringOrList allows YAML fields to accept either a single string or a list.
// "bank" → ["bank"], ["bank", "lender"] → ["bank", "lender"]
type StringOrList []string

func (s *StringOrList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}
	var list []string
	if err := unmarshal(&list); err != nil {
		return err
	}
	*s = list
	return nil
}
