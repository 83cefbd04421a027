package htmltree

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// textOf approximates innerText: text nodes in order, a line break around
// block elements and at <br>, nothing from script/style or from subtrees
// whose computed display is none.
func textOf(n *html.Node, r *render) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
				return
			case atom.Br:
				sb.WriteByte('\n')
				return
			}
			if r.computed(n, "display") == "none" {
				return
			}
			block := isBlock(n.DataAtom)
			if block {
				sb.WriteByte('\n')
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if block {
				sb.WriteByte('\n')
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Trim(sb.String(), "\n")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.Div, atom.P, atom.Section, atom.Article, atom.Main, atom.Nav,
		atom.Header, atom.Footer, atom.Aside, atom.Li, atom.Ul, atom.Ol,
		atom.Pre, atom.Blockquote, atom.Table, atom.Tr, atom.Form,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Hr:
		return true
	}
	return false
}

func isInline(a atom.Atom) bool {
	switch a {
	case atom.Span, atom.A, atom.B, atom.I, atom.Em, atom.Strong, atom.Code,
		atom.Time, atom.Small, atom.Label, atom.Img, atom.Button, atom.Sup,
		atom.Sub, atom.Abbr, atom.Mark, atom.Svg, atom.Input:
		return true
	}
	return false
}

// hiddenTag reports tags that never render.
func hiddenTag(a atom.Atom) bool {
	switch a {
	case atom.Head, atom.Script, atom.Style, atom.Title, atom.Meta,
		atom.Link, atom.Template, atom.Noscript, atom.Base:
		return true
	}
	return false
}
