// Package unicode finds invisible and deceptive characters in page text.
// Invisible characters are stripped before rules run so a claim cannot hide
// from a pattern behind a zero-width space or a direction override.
package unicode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// ActionStrip marks characters removed from the sanitized text.
	ActionStrip = "strip"
	// ActionFlag marks characters kept but reported, such as homoglyphs.
	ActionFlag = "flag"
)

// Threat is one suspicious character in page text.
type Threat struct {
	Category    string // e.g. "zero-width", "bidi-override", "homoglyph-cyrillic", "control-char", "tag-char"
	Description string
	Position    int    // byte offset in the input
	Codepoint   string // e.g. "U+200B"
	Action      string // ActionStrip or ActionFlag
}

// ScanResult holds the output of a Unicode scan.
type ScanResult struct {
	Clean   bool // true if no threats found
	Threats []Threat
	// Sanitized is the input with invisible characters removed.
	Sanitized string
}

// Stripped counts threats removed from the sanitized text.
func (r ScanResult) Stripped() int {
	n := 0
	for _, t := range r.Threats {
		if t.Action == ActionStrip {
			n++
		}
	}
	return n
}

// Scan inspects text for invisible and deceptive characters.
func Scan(input string) ScanResult {
	result := ScanResult{Clean: true}
	var sanitized strings.Builder
	sanitized.Grow(len(input))

	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])

		if r == utf8.RuneError && size == 1 {
			result.Clean = false
			result.Threats = append(result.Threats, Threat{
				Category:    "invalid-utf8",
				Description: "Invalid UTF-8 byte sequence",
				Position:    i,
				Codepoint:   fmt.Sprintf("0x%02X", input[i]),
				Action:      ActionStrip,
			})
			i++
			continue
		}

		if threat, found := classifyRune(r, i); found {
			result.Clean = false
			result.Threats = append(result.Threats, threat)
			if threat.Action == ActionStrip {
				i += size
				continue
			}
		}

		sanitized.WriteRune(r)
		i += size
	}

	result.Sanitized = sanitized.String()
	return result
}

func classifyRune(r rune, pos int) (Threat, bool) {
	cp := fmt.Sprintf("U+%04X", r)

	if unicode.Is(invisibleFormat, r) {
		return Threat{
			Category:    "zero-width",
			Description: fmt.Sprintf("Zero-width character %s can hide text from pattern matching", cp),
			Position:    pos,
			Codepoint:   cp,
			Action:      ActionStrip,
		}, true
	}

	if unicode.Is(bidiControls, r) {
		return Threat{
			Category:    "bidi-override",
			Description: fmt.Sprintf("Bidirectional override %s can make displayed text differ from the markup", cp),
			Position:    pos,
			Codepoint:   cp,
			Action:      ActionStrip,
		}, true
	}

	if unicode.Is(tagChars, r) {
		return Threat{
			Category:    "tag-char",
			Description: fmt.Sprintf("Unicode tag character %s carries invisible text", cp),
			Position:    pos,
			Codepoint:   cp,
			Action:      ActionStrip,
		}, true
	}

	if unicode.IsControl(r) && !strings.ContainsRune("\t\n\r", r) {
		return Threat{
			Category:    "control-char",
			Description: fmt.Sprintf("Control character %s should not appear in page text", cp),
			Position:    pos,
			Codepoint:   cp,
			Action:      ActionStrip,
		}, true
	}

	// Lookalikes stay in the text: real Cyrillic and Greek words use them.
	if l, ok := lookalikes[r]; ok {
		return Threat{
			Category:    "homoglyph-" + l.script,
			Description: fmt.Sprintf("%s %s looks like Latin '%c', possible lookalike spelling", l.name, cp, l.latin),
			Position:    pos,
			Codepoint:   cp,
			Action:      ActionFlag,
		}, true
	}

	return Threat{}, false
}

// invisibleFormat holds characters that render as nothing but still split a
// word, so "guaran\u200bteed" would slip past a pattern.
var invisibleFormat = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00AD, Hi: 0x00AD, Stride: 1},
		{Lo: 0x180E, Hi: 0x180E, Stride: 1},
		{Lo: 0x200B, Hi: 0x200F, Stride: 1},
		{Lo: 0x2060, Hi: 0x2060, Stride: 1},
		{Lo: 0xFEFF, Hi: 0xFEFF, Stride: 1},
	},
	LatinOffset: 1,
}

// bidiControls reorder what the reader sees without changing the markup.
var bidiControls = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x202A, Hi: 0x202E, Stride: 1},
		{Lo: 0x2066, Hi: 0x2069, Stride: 1},
	},
}

var tagChars = &unicode.RangeTable{
	R32: []unicode.Range32{
		{Lo: 0xE0001, Hi: 0xE007F, Stride: 1},
	},
}

type lookalike struct {
	script string
	name   string
	latin  rune
}

// lookalikes maps Cyrillic and Greek letters to the Latin letter they
// imitate.
var lookalikes = buildLookalikes(map[string]map[rune]rune{
	"cyrillic": {
		'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C', 'е': 'e', 'Е': 'E',
		'Н': 'H', 'і': 'i', 'І': 'I', 'К': 'K', 'М': 'M', 'о': 'o', 'О': 'O',
		'р': 'p', 'Р': 'P', 'Т': 'T', 'х': 'x', 'Х': 'X', 'у': 'y', 'У': 'Y',
	},
	"greek": {
		'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I', 'Κ': 'K', 'Μ': 'M',
		'Ν': 'N', 'Ο': 'O', 'ο': 'o', 'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y',
		'Ζ': 'Z',
	},
})

func buildLookalikes(byScript map[string]map[rune]rune) map[rune]lookalike {
	out := make(map[rune]lookalike)
	for script, letters := range byScript {
		for r, latin := range letters {
			out[r] = lookalike{script: script, name: strings.ToUpper(script[:1]) + script[1:], latin: latin}
		}
	}
	return out
}
