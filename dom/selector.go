package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var selectorCache sync.Map // string -> cascadia.SelectorGroup

// Compile parses a selector group, caching the result.
func Compile(selector string) (cascadia.SelectorGroup, error) {
	if v, ok := selectorCache.Load(selector); ok {
		return v.(cascadia.SelectorGroup), nil
	}
	g, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, &SelectorError{Selector: selector, Err: err}
	}
	selectorCache.Store(selector, g)
	return g, nil
}

// SelectorError is returned when a selector cannot be parsed.
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("dom: invalid selector %q: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }

// FragmentMatches reports whether a serialised HTML fragment, or any element
// inside it, matches one of the selector groups. Selectors that depend on
// context outside the fragment (ancestors, siblings) only match when that
// context is part of the fragment itself.
func FragmentMatches(fragment string, groups ...cascadia.SelectorGroup) bool {
	if strings.TrimSpace(fragment) == "" || len(groups) == 0 {
		return false
	}
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctxNode)
	if err != nil {
		return false
	}
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		for _, g := range groups {
			if g == nil {
				continue
			}
			if g.Match(n) || cascadia.Query(n, g) != nil {
				return true
			}
		}
	}
	return false
}

// EscapeIdent escapes s for use as a CSS identifier (class or id).
func EscapeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case r >= 0x1 && r <= 0x1f, r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(s) == 1:
			b.WriteString("\\-")
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QuoteAttr quotes s as a CSS attribute-selector string value.
func QuoteAttr(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}
