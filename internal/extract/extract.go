// Package extract turns fetched HTML into the plain text that rules run on.
package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	unicheck "github.com/lisaapatel/partnerscan/internal/unicode"
)

// Extraction methods, reported alongside the text.
const (
	MethodMain     = "main"
	MethodArticle  = "article"
	MethodBody     = "body"
	MethodDocument = "document"
	MethodEmpty    = "empty"
)

// MaxTitleChars caps the length of a page title.
const MaxTitleChars = 500

// Result is the extracted text of one page.
type Result struct {
	Text   string
	Method string

	// Threats lists invisible or deceptive characters found in the text.
	// Stripped ones are already removed from Text.
	Threats []unicheck.Threat
}

// Stripped counts the invisible characters removed from Text.
func (r Result) Stripped() int {
	return unicheck.ScanResult{Threats: r.Threats}.Stripped()
}

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Object:   true,
}

// MainText returns the main text of an HTML document and the method that
// produced it.
func MainText(doc string) (string, string) {
	r := Extract(doc)
	return r.Text, r.Method
}

// Extract prefers <main> or [role=main] content, then <article>, then <body>,
// then the whole document. Whitespace is collapsed to single spaces.
func Extract(doc string) Result {
	if strings.TrimSpace(doc) == "" {
		return Result{Method: MethodEmpty}
	}

	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return Result{Method: MethodEmpty}
	}

	candidates := []struct {
		method string
		match  func(*html.Node) bool
	}{
		{MethodMain, isMain},
		{MethodArticle, isElement(atom.Article)},
		{MethodBody, isElement(atom.Body)},
	}
	for _, c := range candidates {
		n := find(root, c.match)
		if n == nil {
			continue
		}
		if r := clean(nodeText(n)); r.Text != "" {
			r.Method = c.method
			return r
		}
	}

	r := clean(nodeText(root))
	r.Method = MethodDocument
	return r
}

// Title returns the document's first <title>, trimmed and truncated.
func Title(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != atom.Title {
				continue
			}
			if z.Next() != html.TextToken {
				return ""
			}
			return CleanTitle(string(z.Text()))
		}
	}
}

// CleanTitle collapses whitespace in a title and truncates it.
func CleanTitle(title string) string {
	return truncateRunes(strings.Join(strings.Fields(title), " "), MaxTitleChars)
}

func isMain(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom == atom.Main {
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "role" && strings.EqualFold(strings.TrimSpace(a.Val), "main") {
			return true
		}
	}
	return false
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

// find returns the first node in document order that matches.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	if n.Type == html.ElementNode && skipped[n.DataAtom] {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)
	return sb.String()
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
	case html.CommentNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// clean strips invisible characters and collapses whitespace, including
// non-breaking spaces.
func clean(text string) Result {
	scan := unicheck.Scan(text)
	return Result{
		Text:    strings.Join(strings.Fields(scan.Sanitized), " "),
		Threats: scan.Threats,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
