package palette

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/looma/dom"
)

// Probe samples one candidate color from a document. An empty result means
// "no value here, try the next probe".
type Probe interface {
	Sample(ctx context.Context, doc dom.Document) (string, error)
	String() string
}

// Computed reads a computed property of the first element matching Selector.
type Computed struct {
	Selector string
	Property string
}

func (p Computed) Sample(ctx context.Context, doc dom.Document) (string, error) {
	el, err := doc.Query(ctx, p.Selector)
	if err != nil || el == nil {
		return "", err
	}
	return el.Style(ctx, p.Property)
}

func (p Computed) String() string { return fmt.Sprintf("%s { %s }", p.Selector, p.Property) }

// Var reads a CSS custom property from the root element.
type Var struct {
	Name string
}

func (p Var) Sample(ctx context.Context, doc dom.Document) (string, error) {
	root, err := doc.Root(ctx)
	if err != nil {
		return "", err
	}
	v, err := root.Style(ctx, p.Name)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "initial" || v == "inherit" {
		return "", nil
	}
	return v, nil
}

func (p Var) String() string { return "var(" + p.Name + ")" }

// DefaultDominantLimit bounds how many elements Dominant inspects.
const DefaultDominantLimit = 500

// Dominant returns the most frequent non-transparent background color among
// div, section, main and body elements. Ties go to the color seen first.
type Dominant struct {
	Limit int
}

func (p Dominant) Sample(ctx context.Context, doc dom.Document) (string, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultDominantLimit
	}
	els, err := doc.QueryAll(ctx, "div, section, main, body")
	if err != nil {
		return "", err
	}
	if len(els) > limit {
		els = els[:limit]
	}

	counts := make(map[string]int)
	var order []string
	for _, el := range els {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, err := el.Style(ctx, "background-color")
		if err != nil {
			continue
		}
		c, ok := parse(v)
		if !ok || c.a == 0 {
			continue
		}
		key := c.format()
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	best, top := "", 0
	for _, k := range order {
		if counts[k] > top {
			best, top = k, counts[k]
		}
	}
	return best, nil
}

func (p Dominant) String() string { return "dominant background" }
