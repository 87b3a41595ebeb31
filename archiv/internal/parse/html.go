package parse

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func parseHTML(raw []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(raw))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func isElem(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// attrContains reports whether attribute key contains sub, case-insensitively.
func attrContains(n *html.Node, key, sub string) bool {
	return strings.Contains(strings.ToLower(attr(n, key)), strings.ToLower(sub))
}

func classContains(n *html.Node, sub string) bool { return attrContains(n, "class", sub) }

// walk visits n and its descendants depth-first; fn returns false to skip
// the children of the visited node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(n, func(c *html.Node) bool {
		if pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

var inlineAtoms = map[atom.Atom]bool{
	atom.B: true, atom.I: true, atom.Strong: true, atom.Em: true, atom.U: true,
	atom.Sup: true, atom.Sub: true, atom.Abbr: true, atom.Small: true, atom.Font: true,
}

// text returns the visible text of n with whitespace collapsed. skip, if
// non-nil, excludes whole subtrees.
func text(n *html.Node, skip func(*html.Node) bool) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if skip != nil && c != n && skip(c) {
			return
		}
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			return
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				return
			}
		}
		block := c.Type == html.ElementNode && !inlineAtoms[c.DataAtom] && c.DataAtom != atom.A && c.DataAtom != atom.Span
		if block {
			sb.WriteByte(' ')
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			rec(cc)
		}
		if block {
			sb.WriteByte(' ')
		}
	}
	rec(n)
	return collapse(sb.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tableRows returns the rows of table, not descending into nested tables.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	walk(table, func(n *html.Node) bool {
		if n != table && isElem(n, atom.Table) {
			return false
		}
		if isElem(n, atom.Tr) {
			rows = append(rows, n)
			return false
		}
		return true
	})
	return rows
}

// cells returns the td/th children of a row.
func cells(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if isElem(c, atom.Td) || isElem(c, atom.Th) {
			out = append(out, c)
		}
	}
	return out
}

func dataCells(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if isElem(c, atom.Td) {
			out = append(out, c)
		}
	}
	return out
}

func anchors(n *html.Node) []*html.Node {
	return findAll(n, func(c *html.Node) bool { return isElem(c, atom.A) && attr(c, "href") != "" })
}

func tables(doc *html.Node) []*html.Node {
	return findAll(doc, func(n *html.Node) bool { return isElem(n, atom.Table) })
}

func caption(table *html.Node) string {
	c := findFirst(table, func(n *html.Node) bool { return isElem(n, atom.Caption) })
	return text(c, nil)
}

// absolute resolves href against pageURL when possible.
func absolute(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if pageURL == "" {
		return href
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
