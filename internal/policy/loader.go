package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the policy document at path. A missing or
// unreadable file is a *LoadError.
func Load(path string) (*Policy, *LoadReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Err: err}
	}

	p, report, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, report, err
	}
	return p, report, nil
}

// Parse decodes a policy document. An empty document yields DefaultPolicy.
// Only a document that is not a mapping fails; malformed entries inside it
// are recorded in the report and skipped.
func Parse(data []byte) (*Policy, *LoadReport, error) {
	report := &LoadReport{}

	root, err := parseMapping(data)
	if err != nil {
		return nil, report, err
	}

	p := DefaultPolicy()
	if root == nil {
		return p, report, nil
	}

	decodeSections(root, p, report)
	p.Scan = decodeScan(mappingValue(root, "scan"), report)
	return p, report, nil
}

// parseMapping returns the root mapping of a YAML document, or nil for an
// empty or null document.
func parseMapping(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	root := resolve(doc.Content[0])
	if isNull(root) {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, &LoadError{Err: fmt.Errorf("document root is a %s, not a mapping", kindName(root.Kind))}
	}
	return root, nil
}

// decodeSections fills org, qualifiers, rules and suppressions from a
// document or pack root.
func decodeSections(root *yaml.Node, p *Policy, report *LoadReport) {
	if org := mappingValue(root, "org"); !isNull(org) {
		if org.Kind != yaml.MappingNode {
			report.add("org", "", "expected a mapping, ignored")
		} else {
			p.Org.CompanyNameVariants = decodeStrings(mappingValue(org, "company_name_variants"), "org.company_name_variants", report)
		}
	}

	if quals := mappingValue(root, "qualifiers"); !isNull(quals) {
		if quals.Kind != yaml.MappingNode {
			report.add("qualifiers", "", "expected a mapping of group name to phrases, ignored")
		} else {
			for i := 0; i+1 < len(quals.Content); i += 2 {
				name := quals.Content[i].Value
				value := resolve(quals.Content[i+1])
				if value.Kind != yaml.SequenceNode {
					report.add("qualifiers."+name, "", "expected a list of phrases, group ignored")
					continue
				}
				p.Qualifiers[name] = decodeStrings(value, "qualifiers."+name, report)
			}
		}
	}

	if rules := mappingValue(root, "rules"); !isNull(rules) {
		if rules.Kind != yaml.SequenceNode {
			report.add("rules", "", "expected a list, ignored")
		} else {
			seen := make(map[string]bool)
			for i, n := range rules.Content {
				where := fmt.Sprintf("rules[%d]", i)
				var r Rule
				if err := resolve(n).Decode(&r); err != nil {
					report.add(where, "", "malformed rule skipped: %v", err)
					continue
				}
				normalizeRule(&r, where, report)
				if seen[r.ID] {
					report.add(where, r.ID, "duplicate rule id")
				}
				seen[r.ID] = true
				p.Rules = append(p.Rules, r)
			}
		}
	}

	if sups := mappingValue(root, "suppressions"); !isNull(sups) {
		if sups.Kind != yaml.SequenceNode {
			report.add("suppressions", "", "expected a list, ignored")
		} else {
			for i, n := range sups.Content {
				where := fmt.Sprintf("suppressions[%d]", i)
				var s Suppression
				if err := resolve(n).Decode(&s); err != nil {
					report.add(where, "", "malformed suppression skipped: %v", err)
					continue
				}
				s.RuleID = strings.TrimSpace(s.RuleID)
				if s.RuleID == "" {
					report.add(where, "", "suppression without rule_id skipped")
					continue
				}
				p.Suppressions = append(p.Suppressions, s)
			}
		}
	}
}

func normalizeRule(r *Rule, where string, report *LoadReport) {
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = UnknownRuleID
	}

	switch sev := Severity(strings.ToUpper(strings.TrimSpace(string(r.Severity)))); sev {
	case "":
		r.Severity = SeverityMedium
	case SeverityHigh, SeverityMedium:
		r.Severity = sev
	default:
		report.add(where, r.ID, "unknown severity %q, using %s", r.Severity, SeverityMedium)
		r.Severity = SeverityMedium
	}

	r.Patterns = nonEmpty(r.Patterns)
	r.TriggerPatterns = nonEmpty(r.TriggerPatterns)
	r.RequiredQualifiersAny = nonEmpty(r.RequiredQualifiersAny)
	if r.Proximity != nil {
		r.Proximity.AnchorPatterns = nonEmpty(r.Proximity.AnchorPatterns)
		r.Proximity.NearPatterns = nonEmpty(r.Proximity.NearPatterns)
	}

	switch r.Shape() {
	case ShapeNone:
		report.add(where, r.ID, "no patterns, proximity or trigger_patterns; rule produces no findings")
	case ShapeAmbiguous:
		report.add(where, r.ID, "more than one of patterns, proximity and trigger_patterns set; rule skipped")
	case ShapeTrigger:
		if len(r.RequiredQualifiersAny) == 0 {
			report.add(where, r.ID, "trigger_patterns without required_qualifiers_any; rule produces no findings")
		}
	case ShapeProximity:
		if len(r.Proximity.AnchorPatterns) == 0 || len(r.Proximity.NearPatterns) == 0 {
			report.add(where, r.ID, "proximity needs anchor_patterns and near_patterns; rule produces no findings")
		}
	}
}

// Evaluable reports whether the rule has a single, complete shape.
func (r Rule) Evaluable() bool {
	switch r.Shape() {
	case ShapePattern:
		return true
	case ShapeProximity:
		return len(r.Proximity.AnchorPatterns) > 0 && len(r.Proximity.NearPatterns) > 0
	case ShapeTrigger:
		return len(r.RequiredQualifiersAny) > 0
	default:
		return false
	}
}

func decodeScan(n *yaml.Node, report *LoadReport) ScanConfig {
	cfg := DefaultScanConfig()
	if isNull(n) {
		return cfg
	}
	if n.Kind != yaml.MappingNode {
		report.add("scan", "", "expected a mapping, using defaults")
		return cfg
	}

	ints := map[string]*int{
		"snippet_chars":                &cfg.SnippetChars,
		"qualifier_window_chars":       &cfg.QualifierWindowChars,
		"proximity_window_chars":       &cfg.ProximityWindowChars,
		"upgrade_context_window_chars": &cfg.UpgradeContextWindowChars,
	}
	bools := map[string]*bool{
		"case_insensitive":        &cfg.CaseInsensitive,
		"require_upgrade_context": &cfg.RequireUpgradeContext,
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		value := resolve(n.Content[i+1])
		where := "scan." + key

		var err error
		switch {
		case ints[key] != nil:
			var v int
			if isNull(value) {
				continue
			}
			if err = value.Decode(&v); err == nil {
				*ints[key] = v
			}
		case bools[key] != nil:
			var v bool
			if isNull(value) {
				continue
			}
			if err = value.Decode(&v); err == nil {
				*bools[key] = v
			}
		default:
			report.add(where, "", "unknown scan key ignored")
			continue
		}
		if err != nil {
			report.add(where, "", "invalid value, using default: %v", err)
		}
	}
	return cfg
}

// decodeStrings reads a string list, dropping empty entries.
func decodeStrings(n *yaml.Node, where string, report *LoadReport) []string {
	if isNull(n) {
		return nil
	}
	var list []string
	if err := n.Decode(&list); err != nil {
		report.add(where, "", "expected a list of strings, ignored: %v", err)
		return nil
	}
	return nonEmpty(list)
}

func nonEmpty(list []string) []string {
	var out []string
	for _, s := range list {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return resolve(m.Content[i+1])
		}
	}
	return nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "document"
	}
}
