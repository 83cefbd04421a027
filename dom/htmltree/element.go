package htmltree

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/looma/dom"
)

type element struct {
	d    *Document
	n    *html.Node
	path dom.Path
}

// wrap must be called with d.mu held.
func (d *Document) wrap(n *html.Node) *element {
	return &element{d: d, n: n, path: pathOf(n)}
}

func (d *Document) wrapAll(nodes []*html.Node) []dom.Element {
	out := make([]dom.Element, len(nodes))
	for i, n := range nodes {
		out[i] = d.wrap(n)
	}
	return out
}

func (e *element) Tag() string    { return e.n.Data }
func (e *element) Path() dom.Path { return e.path }

func (e *element) String() string {
	return fmt.Sprintf("<%s> at %s", e.n.Data, e.path)
}

func (e *element) Attr(_ context.Context, name string) (string, bool, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	v, ok := attr(e.n, name)
	return v, ok, nil
}

func (e *element) Text(context.Context) (string, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return textOf(e.n, e.d.render()), nil
}

func (e *element) Style(_ context.Context, prop string) (string, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return e.d.render().computed(e.n, strings.ToLower(strings.TrimSpace(prop))), nil
}

func (e *element) Rect(context.Context) (dom.Rect, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return e.d.render().rects[e.n], nil
}

func (e *element) Matches(_ context.Context, selector string) (bool, error) {
	g, err := dom.Compile(selector)
	if err != nil {
		return false, err
	}
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return g.Match(e.n), nil
}

func (e *element) Query(_ context.Context, selector string) (dom.Element, error) {
	g, err := dom.Compile(selector)
	if err != nil {
		return nil, err
	}
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	n := cascadia.Query(e.n, g)
	if n == nil {
		return nil, nil
	}
	return e.d.wrap(n), nil
}

func (e *element) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	g, err := dom.Compile(selector)
	if err != nil {
		return nil, err
	}
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return e.d.wrapAll(cascadia.QueryAll(e.n, g)), nil
}

func (e *element) Attached(context.Context) (bool, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	for n := e.n; n != nil; n = n.Parent {
		if n == e.d.root {
			return true, nil
		}
	}
	return false, nil
}

// pathOf returns child indexes from the topmost ancestor down to n.
func pathOf(n *html.Node) dom.Path {
	var p dom.Path
	for ; n.Parent != nil; n = n.Parent {
		i := 0
		for s := n.Parent.FirstChild; s != nil && s != n; s = s.NextSibling {
			i++
		}
		p = append(p, i)
	}
	slices.Reverse(p)
	return p
}

// xpathOf computes a positional XPath for n, in the form the page observer
// script reports.
func xpathOf(n *html.Node) string {
	var parts []string
	for c := n; c != nil && c.Type != html.DocumentNode; c = c.Parent {
		switch c.Type {
		case html.TextNode:
			parts = append(parts, "text()")
			continue
		case html.ElementNode:
		default:
			continue
		}
		idx, total := 1, 0
		if c.Parent != nil {
			for s := c.Parent.FirstChild; s != nil; s = s.NextSibling {
				if s.Type == html.ElementNode && s.Data == c.Data {
					total++
					if s == c {
						idx = total
					}
				}
			}
		}
		if total > 1 {
			parts = append(parts, fmt.Sprintf("%s[%d]", c.Data, idx))
		} else {
			parts = append(parts, c.Data)
		}
	}
	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
