// Package gate decides whether page text is about the tracked partner at
// all, and whether a particular match sits close to a mention of it.
package gate

import (
	"github.com/lisaapatel/partnerscan/internal/phrase"
	"github.com/lisaapatel/partnerscan/internal/textwin"
)

// Gate holds the partner's name variants. With no variants every check
// passes.
type Gate struct {
	variants *phrase.Set
}

// New builds a gate from company name variants. Variants are literal
// phrases; empty entries are ignored.
func New(variants []string, caseInsensitive bool) *Gate {
	return &Gate{variants: phrase.NewSet(variants, caseInsensitive)}
}

// Unconstrained reports whether the gate has no variants to look for.
func (g *Gate) Unconstrained() bool {
	return g == nil || g.variants.Empty()
}

// IsTopicRelevant reports whether text mentions any variant.
func (g *Gate) IsTopicRelevant(text string) bool {
	if g.Unconstrained() {
		return true
	}
	return g.variants.ContainsAny(text)
}

// IsNearMention reports whether a variant occurs inside the window of the
// given width centered at center (a rune index). window <= 0 disables the
// check.
func (g *Gate) IsNearMention(text string, center, window int) bool {
	if window <= 0 {
		return true
	}
	return g.IsTopicRelevant(textwin.WindowAround(text, center, window))
}

// IsNearMentionDoc is IsNearMention over a pre-indexed document.
func (g *Gate) IsNearMentionDoc(doc *textwin.Doc, center, window int) bool {
	if window <= 0 {
		return true
	}
	return g.IsTopicRelevant(doc.Window(center, window))
}
