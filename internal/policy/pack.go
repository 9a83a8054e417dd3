package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Pack is a rule pack: an extra policy fragment contributing rules,
// qualifier phrases, company name variants and suppressions. Scan settings
// always come from the base policy.
type Pack struct {
	Name        string
	Description string
	Version     string
	Author      string
	Content     *Policy
}

// PackInfo is a summary of a pack for listing.
type PackInfo struct {
	Name        string
	Description string
	Version     string
	Author      string
	Enabled     bool
	Path        string
	RuleCount   int
	Err         error
}

// LoadPacks reads all .yaml files from the packs directory and merges the
// enabled ones into a copy of base. Rules from packs are appended after the
// base rules; variants and qualifier phrases are unioned; suppressions are
// merged by key. Files prefixed with "_" are disabled.
func LoadPacks(packsDir string, base *Policy, report *LoadReport) (*Policy, []PackInfo, error) {
	var infos []PackInfo

	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, err
	}
	if report == nil {
		report = &LoadReport{}
	}

	result := clonePolicy(base)

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())

		// Check if pack is disabled (prefixed with underscore)
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := LoadPack(path, report)
		if err != nil {
			infos = append(infos, PackInfo{
				Name:    baseName,
				Enabled: enabled,
				Path:    path,
				Err:     err,
			})
			continue
		}

		info := PackInfo{
			Name:        pack.Name,
			Description: pack.Description,
			Version:     pack.Version,
			Author:      pack.Author,
			Enabled:     enabled,
			Path:        path,
			RuleCount:   len(pack.Content.Rules),
		}
		if info.Name == "" {
			info.Name = baseName
		}
		infos = append(infos, info)

		if !enabled {
			continue
		}

		mergePackInto(result, pack.Content)
	}

	return result, infos, nil
}

// LoadPack parses one pack file. Pack issues are recorded in report with
// the file name prefixed.
func LoadPack(path string, report *LoadReport) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	root, err := parseMapping(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pack %s: %w", path, err)
	}

	pack := &Pack{Content: DefaultPolicy()}
	if root == nil {
		return pack, nil
	}

	var meta struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Version     string `yaml:"version"`
		Author      string `yaml:"author"`
	}
	if err := root.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to parse pack %s: %w", path, err)
	}
	pack.Name, pack.Description, pack.Version, pack.Author = meta.Name, meta.Description, meta.Version, meta.Author

	local := &LoadReport{}
	decodeSections(root, pack.Content, local)
	if mappingValue(root, "scan") != nil {
		local.add("scan", "", "scan settings in packs are ignored")
	}
	if report != nil {
		for _, issue := range local.Issues {
			issue.Where = filepath.Base(path) + ": " + issue.Where
			report.Issues = append(report.Issues, issue)
		}
	}
	return pack, nil
}

// mergePackInto merges a pack's rules, variants, qualifiers and
// suppressions into the target policy.
func mergePackInto(target, pack *Policy) {
	// Append rules (pack rules run after base rules)
	target.Rules = append(target.Rules, pack.Rules...)

	target.Org.CompanyNameVariants = union(target.Org.CompanyNameVariants, pack.Org.CompanyNameVariants)

	for name, phrases := range pack.Qualifiers {
		target.Qualifiers[name] = union(target.Qualifiers[name], phrases)
	}

	target.MergeSuppressions(pack.Suppressions)
}

func union(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			existing = append(existing, s)
			seen[s] = true
		}
	}
	return existing
}

func clonePolicy(p *Policy) *Policy {
	clone := &Policy{
		Scan:       p.Scan,
		Qualifiers: make(map[string][]string, len(p.Qualifiers)),
	}

	clone.Org.CompanyNameVariants = append([]string(nil), p.Org.CompanyNameVariants...)
	for name, phrases := range p.Qualifiers {
		clone.Qualifiers[name] = append([]string(nil), phrases...)
	}

	clone.Rules = make([]Rule, len(p.Rules))
	copy(clone.Rules, p.Rules)

	clone.Suppressions = make([]Suppression, len(p.Suppressions))
	copy(clone.Suppressions, p.Suppressions)

	return clone
}

// PackPath returns the file for a pack name, enabled or disabled, and
// whether it is currently enabled.
func PackPath(packsDir, name string) (string, bool, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		enabled := filepath.Join(packsDir, name+ext)
		if _, err := os.Stat(enabled); err == nil {
			return enabled, true, nil
		}
		disabled := filepath.Join(packsDir, "_"+name+ext)
		if _, err := os.Stat(disabled); err == nil {
			return disabled, false, nil
		}
	}
	return "", false, fmt.Errorf("pack %q not found in %s", name, packsDir)
}

// SetPackEnabled renames a pack file to enable or disable it.
func SetPackEnabled(packsDir, name string, enabled bool) (string, error) {
	path, isEnabled, err := PackPath(packsDir, name)
	if err != nil {
		return "", err
	}
	if isEnabled == enabled {
		return path, nil
	}
	file := filepath.Base(path)
	if enabled {
		file = strings.TrimPrefix(file, "_")
	} else {
		file = "_" + file
	}
	target := filepath.Join(packsDir, file)
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// DefaultPacksDir is the packs directory next to a policy file.
func DefaultPacksDir(policyPath string) string {
	return filepath.Join(filepath.Dir(policyPath), "policies.d")
}
