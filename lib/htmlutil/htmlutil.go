package htmlutil

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// StripTags parses an html fragment and returns its text with entities decoded.
// Text that fails to parse is returned with only entities decoded.
func StripTags(fragment string) string {
	context := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return html.UnescapeString(fragment)
	}
	var buffer bytes.Buffer
	for _, n := range nodes {
		getBlockTextRecursive(n, &buffer)
	}
	return buffer.String()
}

var blockElements = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true,
	atom.Ul: true, atom.Ol: true, atom.Tr: true, atom.Td: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Section: true,
}

// collects every text node under `node`, skipping script and style contents.
// block elements are surrounded by spaces so "a<br>b" does not turn into "ab".
func getBlockTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		if node.DataAtom == atom.Script || node.DataAtom == atom.Style {
			return
		}
		if blockElements[node.DataAtom] {
			buffer.WriteByte(' ')
			defer buffer.WriteByte(' ')
		}
	}
	child := node.FirstChild
	for child != nil {
		getBlockTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// CollapseWhitespace replaces every run of unicode whitespace (nbsp included)
// with a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate keeps at most `limit` runes of `s`.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit]), " ")
}

// CleanText is StripTags, CollapseWhitespace and Truncate in that order.
func CleanText(fragment string, limit int) string {
	return Truncate(CollapseWhitespace(StripTags(fragment)), limit)
}

// SelectionText returns the collapsed text of a goquery selection.
func SelectionText(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getBlockTextRecursive(n, &buffer)
	}
	return CollapseWhitespace(buffer.String())
}

// DecodeBody converts a fetched page to utf-8 using the declared content type
// and the page's own meta tags.
func DecodeBody(body []byte, contentType string) string {
	if utf8.Valid(body) {
		return string(body)
	}
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
