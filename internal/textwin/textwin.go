// Package textwin computes character windows and review snippets around
// positions in extracted page text. All positions are rune indices so that
// windows never split a multi-byte character.
package textwin

import "sort"

// Ellipsis marks a snippet that was cut before the start or end of the text.
const Ellipsis = "…"

// Doc indexes a string by rune. regexp reports byte offsets; Doc converts
// them to character positions once per document.
type Doc struct {
	text    string
	offsets []int // offsets[i] is the byte offset of rune i; offsets[Len()] == len(text)
}

// NewDoc builds the rune offset table for text.
func NewDoc(text string) *Doc {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))
	return &Doc{text: text, offsets: offsets}
}

// Text returns the underlying string.
func (d *Doc) Text() string { return d.text }

// Len returns the number of runes in the document.
func (d *Doc) Len() int { return len(d.offsets) - 1 }

// RuneIndex converts a byte offset into a rune index.
func (d *Doc) RuneIndex(byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset >= len(d.text) {
		return d.Len()
	}
	return sort.SearchInts(d.offsets, byteOffset)
}

// ByteOffset converts a rune index into a byte offset.
func (d *Doc) ByteOffset(runeIndex int) int {
	return d.offsets[clamp(runeIndex, 0, d.Len())]
}

// Slice returns the runes in [start, end), clamped to the document.
func (d *Doc) Slice(start, end int) string {
	start = clamp(start, 0, d.Len())
	end = clamp(end, start, d.Len())
	return d.text[d.offsets[start]:d.offsets[end]]
}

// Window returns the text of Bounds(d.Len(), center, width).
func (d *Doc) Window(center, width int) string {
	s, e := Bounds(d.Len(), center, width)
	return d.Slice(s, e)
}

// Snippet returns up to width runes of context around the match span
// [start, end), marked with Ellipsis where the text was cut.
func (d *Doc) Snippet(start, end, width int) string {
	length := d.Len()
	s, e := SnippetBounds(length, start, end, width)
	if s == e {
		return ""
	}
	out := d.Slice(s, e)
	if s > 0 {
		out = Ellipsis + out
	}
	if e < length {
		out += Ellipsis
	}
	return out
}

// Bounds returns the window of total width centered at center in a text of
// length runes. The window extends width/2 to the left and fills the rest of
// the width to the right; it never extends past either end of the text.
// width <= 0 yields an empty window.
func Bounds(length, center, width int) (int, int) {
	if width <= 0 || length <= 0 {
		return 0, 0
	}
	start := clamp(center-width/2, 0, length)
	end := clamp(start+width, start, length)
	return start, end
}

// SnippetBounds returns the span of at most width runes used for a snippet of
// the match [start, end). The match is centered in the snippet and kept whole
// whenever it fits; near the text edges the snippet slides inward.
func SnippetBounds(length, start, end, width int) (int, int) {
	if width <= 0 || length <= 0 {
		return 0, 0
	}
	start = clamp(start, 0, length)
	end = clamp(end, start, length)

	if end-start >= width {
		return start, clamp(start+width, start, length)
	}

	s := start - (width-(end-start))/2
	if s < 0 {
		s = 0
	}
	e := s + width
	if e > length {
		e = length
		s = e - width
		if s < 0 {
			s = 0
		}
	}
	return s, e
}

// WindowAround is Bounds applied to text.
func WindowAround(text string, center, width int) string {
	return NewDoc(text).Window(center, width)
}

// Snippet is Doc.Snippet applied to text with rune positions.
func Snippet(text string, start, end, width int) string {
	return NewDoc(text).Snippet(start, end, width)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
