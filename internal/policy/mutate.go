package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MergeSuppressions appends the entries of add whose key is not already
// present and returns how many were added. Re-applying the same batch adds
// nothing.
func (p *Policy) MergeSuppressions(add []Suppression) int {
	fresh := newSuppressions(p.Suppressions, add)
	p.Suppressions = append(p.Suppressions, fresh...)
	return len(fresh)
}

// newSuppressions returns the entries of add not keyed in existing, also
// dropping repeats within add and entries without a rule id.
func newSuppressions(existing, add []Suppression) []Suppression {
	seen := make(map[SuppressionKey]bool, len(existing))
	for _, s := range existing {
		seen[s.Key()] = true
	}
	var fresh []Suppression
	for _, s := range add {
		if s.RuleID == "" || seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		fresh = append(fresh, s)
	}
	return fresh
}

// MergeSuppressions merges add into the suppressions list of a policy
// document by editing its node tree, so comments and unrelated keys
// survive. It returns the updated document and the number of entries
// added. When nothing is added the input is returned unchanged.
func MergeSuppressions(doc []byte, add []Suppression) ([]byte, int, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, 0, &LoadError{Err: err}
	}
	if root.Kind == 0 || len(root.Content) == 0 || isNull(root.Content[0]) {
		root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	m := resolve(root.Content[0])
	if m.Kind != yaml.MappingNode {
		return nil, 0, &LoadError{Err: fmt.Errorf("document root is a %s, not a mapping", kindName(m.Kind))}
	}

	seq, err := suppressionsSequence(m)
	if err != nil {
		return nil, 0, err
	}

	var existing []Suppression
	for _, n := range seq.Content {
		var s Suppression
		if err := resolve(n).Decode(&s); err == nil {
			existing = append(existing, s)
		}
	}

	fresh := newSuppressions(existing, add)
	if len(fresh) == 0 {
		return doc, 0, nil
	}
	for _, s := range fresh {
		n := &yaml.Node{}
		if err := n.Encode(s); err != nil {
			return nil, 0, fmt.Errorf("encode suppression for %s: %w", s.RuleID, err)
		}
		seq.Content = append(seq.Content, n)
	}
	seq.Style &^= yaml.FlowStyle

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, 0, fmt.Errorf("encode policy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, 0, fmt.Errorf("encode policy: %w", err)
	}
	return buf.Bytes(), len(fresh), nil
}

// suppressionsSequence returns the suppressions list of m, creating it
// when absent or null.
func suppressionsSequence(m *yaml.Node) (*yaml.Node, error) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != "suppressions" {
			continue
		}
		value := resolve(m.Content[i+1])
		if isNull(value) {
			seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			m.Content[i+1] = seq
			return seq, nil
		}
		if value.Kind != yaml.SequenceNode {
			return nil, &LoadError{Err: fmt.Errorf("suppressions is a %s, not a list", kindName(value.Kind))}
		}
		return value, nil
	}

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "suppressions"},
		seq,
	)
	return seq, nil
}

// AppendSuppressionsFile merges add into the policy file at path and
// returns how many entries were added. The file is replaced atomically and
// left untouched when nothing is added.
func AppendSuppressionsFile(path string, add []Suppression) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &LoadError{Path: path, Err: err}
	}

	out, added, err := MergeSuppressions(data, add)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return 0, err
	}
	if added == 0 {
		return 0, nil
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("write policy: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write policy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write policy: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return 0, fmt.Errorf("write policy: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("write policy: %w", err)
	}
	return added, nil
}

// SuppressionsYAML renders entries as a `suppressions:` block for pasting
// into a policy by hand.
func SuppressionsYAML(entries []Suppression) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Suppressions []Suppression `yaml:"suppressions"`
	}{entries}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
