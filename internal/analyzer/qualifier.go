package analyzer

import (
	"sort"

	"github.com/lisaapatel/partnerscan/internal/phrase"
)

// QualifierSet holds the policy's named qualifier phrase groups.
type QualifierSet struct {
	groups          map[string][]string
	caseInsensitive bool
}

// NewQualifierSet copies groups; empty phrases are dropped.
func NewQualifierSet(groups map[string][]string, caseInsensitive bool) *QualifierSet {
	q := &QualifierSet{groups: map[string][]string{}, caseInsensitive: caseInsensitive}
	for name, phrases := range groups {
		for _, p := range phrases {
			if p != "" {
				q.groups[name] = append(q.groups[name], p)
			}
		}
		if _, ok := q.groups[name]; !ok {
			q.groups[name] = nil
		}
	}
	return q
}

// Has reports whether a group with this name is defined.
func (q *QualifierSet) Has(name string) bool {
	_, ok := q.groups[name]
	return ok
}

// Names returns the defined group names, sorted.
func (q *QualifierSet) Names() []string {
	names := make([]string, 0, len(q.groups))
	for name := range q.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve merges the phrases of the named groups into one matcher. Unknown
// names contribute nothing.
func (q *QualifierSet) Resolve(names []string) *phrase.Set {
	var phrases []string
	for _, name := range names {
		phrases = append(phrases, q.groups[name]...)
	}
	return phrase.NewSet(phrases, q.caseInsensitive)
}

// qualified reports whether any qualifier phrase appears in the qualifier
// window around center.
func (ctx *AnalysisContext) qualified(qualifiers *phrase.Set, center int) bool {
	if qualifiers.Empty() {
		return false
	}
	return qualifiers.ContainsAny(ctx.Doc.Window(center, ctx.Settings.QualifierWindowChars))
}
