package htmltree

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/looma/dom"
)

// Layout constants: every text run wraps at charWidth per glyph and takes
// lineHeight per line.
const (
	lineHeight = 20.0
	charWidth  = 8.0
)

// layout stacks every element vertically inside its parent. Explicit px
// width and height are honoured; display:none removes the subtree.
// Elements missing from rects have an empty box.
func (r *render) layout(root *html.Node, viewport float64) {
	r.rects = make(map[*html.Node]dom.Rect)
	var place func(n *html.Node, top, left, width float64) float64
	place = func(n *html.Node, top, left, width float64) float64 {
		switch n.Type {
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text == "" {
				return 0
			}
			perLine := math.Max(1, math.Floor(width/charWidth))
			lines := math.Ceil(float64(utf8.RuneCountInString(text)) / perLine)
			return lines * lineHeight

		case html.ElementNode:
			if r.computed(n, "display") == "none" {
				return 0
			}
			w := width
			if px, ok := pixels(r.computed(n, "width")); ok {
				w = px
			}
			h, cur := 0.0, top
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				ch := place(c, cur, left, w)
				cur += ch
				h += ch
			}
			if px, ok := pixels(r.computed(n, "height")); ok {
				h = px
			}
			r.rects[n] = dom.Rect{Top: top, Left: left, Width: w, Height: h}
			return h

		case html.DocumentNode:
			h := 0.0
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				h += place(c, top+h, left, width)
			}
			return h
		}
		return 0
	}
	place(root, 0, 0, viewport)
}

// pixels parses "<n>px" or a bare "0".
func pixels(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "0" {
		return 0, true
	}
	num, ok := strings.CutSuffix(v, "px")
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
