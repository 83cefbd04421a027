package htmltree

import (
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/looma/dom"
)

// render is the style and geometry state of one document version.
// Immutable once built.
type render struct {
	version uint64
	rules   []styleRule
	rects   map[*html.Node]dom.Rect
}

type styleRule struct {
	sel   cascadia.Sel
	spec  cascadia.Specificity
	order int
	decls []*css.Declaration
}

func buildRender(root *html.Node, version uint64, viewport float64, logger *slog.Logger) *render {
	r := &render{version: version}
	r.rules = collectRules(root, logger)
	r.layout(root, viewport)
	return r
}

// collectRules parses every <style> element in document order. At-rules
// (@media, @supports, @font-face...) are skipped.
func collectRules(root *html.Node, logger *slog.Logger) []styleRule {
	var rules []styleRule
	order := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Style {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			sheet, err := parser.Parse(sb.String())
			if err != nil {
				logger.Debug("htmltree: stylesheet parse failed", "error", err)
				return
			}
			for _, rule := range sheet.Rules {
				if rule.Kind != css.QualifiedRule {
					continue
				}
				for _, s := range rule.Selectors {
					sel, err := cascadia.Parse(s)
					if err != nil {
						logger.Debug("htmltree: selector skipped", "selector", s, "error", err)
						continue
					}
					rules = append(rules, styleRule{
						sel:   sel,
						spec:  sel.Specificity(),
						order: order,
						decls: rule.Declarations,
					})
					order++
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return rules
}

// Cascade levels, lowest first.
const (
	levelUA = iota
	levelAuthor
	levelInline
	levelAuthorImportant
	levelInlineImportant
)

type candidate struct {
	value string
	level int
	spec  cascadia.Specificity
	order int
	set   bool
}

func (c candidate) beats(o candidate) bool {
	if !o.set {
		return true
	}
	if c.level != o.level {
		return c.level > o.level
	}
	if c.spec != o.spec {
		return o.spec.Less(c.spec)
	}
	return c.order >= o.order
}

// shorthands lists the declarations that also set a longhand.
var shorthands = map[string]string{
	"background-color": "background",
	"border-color":     "border",
}

// cascaded returns the winning declared value for prop on n.
func (r *render) cascaded(n *html.Node, prop string) (string, bool) {
	var best candidate
	consider := func(d *css.Declaration, level int, spec cascadia.Specificity, order int) {
		name := strings.ToLower(strings.TrimSpace(d.Property))
		value := strings.TrimSpace(d.Value)
		if name != prop {
			if shorthands[prop] != name {
				return
			}
			value = shorthandColor(value)
			if value == "" {
				return
			}
		}
		if d.Important {
			level += 2
		}
		c := candidate{value: value, level: level, spec: spec, order: order, set: true}
		if c.beats(best) {
			best = c
		}
	}

	if prop == "display" {
		if _, ok := attr(n, "hidden"); ok {
			best = candidate{value: "none", level: levelUA, set: true}
		}
	}
	for _, rule := range r.rules {
		if !rule.sel.Match(n) {
			continue
		}
		for _, d := range rule.decls {
			consider(d, levelAuthor, rule.spec, rule.order)
		}
	}
	if style, ok := attr(n, "style"); ok && strings.TrimSpace(style) != "" {
		style = strings.TrimSpace(style)
		if !strings.HasSuffix(style, ";") {
			style += ";"
		}
		if decls, err := parser.ParseDeclarations(style); err == nil {
			for i, d := range decls {
				consider(d, levelInline, cascadia.Specificity{}, i)
			}
		}
	}
	return best.value, best.set
}

// shorthandColor extracts the color component of a background or border
// shorthand. Only the single-token form is understood.
func shorthandColor(v string) string {
	fields := splitTopLevel(v)
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		lower := strings.ToLower(f)
		switch {
		case strings.HasPrefix(f, "#"),
			strings.HasPrefix(lower, "rgb"),
			strings.HasPrefix(lower, "hsl"),
			strings.HasPrefix(lower, "var("),
			lower == "transparent", lower == "currentcolor":
			return f
		}
		if _, ok := namedColors[lower]; ok {
			return f
		}
	}
	return ""
}

var namedColors = map[string]struct{}{
	"black": {}, "white": {}, "red": {}, "green": {}, "blue": {}, "gray": {},
	"grey": {}, "silver": {}, "yellow": {}, "orange": {}, "purple": {}, "navy": {},
}

func inherited(prop string) bool {
	if strings.HasPrefix(prop, "--") {
		return true
	}
	switch prop {
	case "color", "visibility", "font-family", "font-size", "font-weight",
		"line-height", "text-align", "white-space", "cursor":
		return true
	}
	return false
}

func initialValue(r *render, n *html.Node, prop string) string {
	switch prop {
	case "display":
		switch {
		case hiddenTag(n.DataAtom):
			return "none"
		case isInline(n.DataAtom):
			return "inline"
		}
		return "block"
	case "visibility":
		return "visible"
	case "opacity":
		return "1"
	case "color":
		return "rgb(0, 0, 0)"
	case "background-color":
		return "rgba(0, 0, 0, 0)"
	case "border-color":
		return r.computed(n, "color")
	case "width", "height":
		return "auto"
	}
	return ""
}

func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// computed resolves prop on n: cascade, then inheritance, then the initial
// value. var() references and currentcolor are substituted.
func (r *render) computed(n *html.Node, prop string) string {
	return r.value(n, prop, 0)
}

const maxVarDepth = 8

func (r *render) value(n *html.Node, prop string, depth int) string {
	if n == nil || n.Type != html.ElementNode || depth > maxVarDepth {
		return ""
	}
	v, ok := r.cascaded(n, prop)
	if !ok {
		if inherited(prop) {
			if p := parentElement(n); p != nil {
				return r.value(p, prop, depth)
			}
		}
		return initialValue(r, n, prop)
	}
	switch strings.ToLower(v) {
	case "inherit":
		if p := parentElement(n); p != nil {
			return r.value(p, prop, depth)
		}
		return initialValue(r, n, prop)
	case "initial":
		return initialValue(r, n, prop)
	case "unset":
		if p := parentElement(n); p != nil && inherited(prop) {
			return r.value(p, prop, depth)
		}
		return initialValue(r, n, prop)
	case "currentcolor":
		if prop == "color" {
			if p := parentElement(n); p != nil {
				return r.value(p, "color", depth)
			}
			return initialValue(r, n, prop)
		}
		return r.value(n, "color", depth)
	}
	return r.resolveVars(n, v, depth)
}

// resolveVars substitutes var(--name[, fallback]) references. Cycles are
// cut at maxVarDepth and resolve to the empty string.
func (r *render) resolveVars(n *html.Node, v string, depth int) string {
	for {
		start := strings.Index(v, "var(")
		if start < 0 {
			return v
		}
		end := matchParen(v, start+3)
		if end < 0 {
			return v
		}
		name, fallback, hasFallback := strings.Cut(v[start+4:end], ",")
		name = strings.TrimSpace(name)
		val := ""
		if strings.HasPrefix(name, "--") {
			val = r.value(n, name, depth+1)
		}
		if val == "" && hasFallback {
			val = r.resolveVars(n, strings.TrimSpace(fallback), depth+1)
		}
		v = v[:start] + val + v[end+1:]
	}
}

// matchParen returns the index of the parenthesis closing the one at open.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on whitespace outside parentheses.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, -1
	for i, c := range s {
		switch {
		case c == '(':
			depth++
		case c == ')':
			depth--
		case depth == 0 && (c == ' ' || c == '\t' || c == '\n'):
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
