package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/looma/dom"
)

// element is a handle on a live node. Tag and path are read once.
type element struct {
	el   *rod.Element
	tag  string
	path dom.Path
}

var _ dom.Element = (*element)(nil)

const identifyJS = `() => {
	const path = [];
	for (let n = this; n.parentNode; n = n.parentNode) {
		path.push(Array.prototype.indexOf.call(n.parentNode.childNodes, n));
	}
	return { tag: this.localName || "", path: path.reverse() };
}`

func wrap(ctx context.Context, el *rod.Element) (*element, error) {
	var id struct {
		Tag  string `json:"tag"`
		Path []int  `json:"path"`
	}
	if err := evalInto(ctx, el, &id, identifyJS); err != nil {
		return nil, fmt.Errorf("browser: identify element: %w", err)
	}
	return &element{el: el, tag: id.Tag, path: dom.Path(id.Path)}, nil
}

func wrapAll(ctx context.Context, els rod.Elements) ([]dom.Element, error) {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		w, err := wrap(ctx, el)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// evalInto runs js on el and decodes the returned value into v.
func evalInto(ctx context.Context, el *rod.Element, v any, js string, args ...any) error {
	res, err := el.Context(ctx).Eval(js, args...)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (e *element) Tag() string { return e.tag }
func (e *element) Path() dom.Path { return e.path }

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("browser: attr %s: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	var s string
	if err := evalInto(ctx, e.el, &s, `() => this.innerText ?? this.textContent ?? ""`); err != nil {
		return "", fmt.Errorf("browser: text: %w", err)
	}
	return s, nil
}

func (e *element) Style(ctx context.Context, prop string) (string, error) {
	var s string
	err := evalInto(ctx, e.el, &s, `(p) => getComputedStyle(this).getPropertyValue(p).trim()`, prop)
	if err != nil {
		return "", fmt.Errorf("browser: style %s: %w", prop, err)
	}
	return s, nil
}

func (e *element) Rect(ctx context.Context) (dom.Rect, error) {
	var r dom.Rect
	err := evalInto(ctx, e.el, &r, `() => {
		const b = this.getBoundingClientRect();
		return { top: b.top + window.scrollY, left: b.left + window.scrollX, width: b.width, height: b.height };
	}`)
	if err != nil {
		return dom.Rect{}, fmt.Errorf("browser: rect: %w", err)
	}
	return r, nil
}

func (e *element) Matches(ctx context.Context, selector string) (bool, error) {
	if _, err := dom.Compile(selector); err != nil {
		return false, err
	}
	ok, err := e.el.Context(ctx).Matches(selector)
	if err != nil {
		return false, fmt.Errorf("browser: matches %q: %w", selector, err)
	}
	return ok, nil
}

func (e *element) Query(ctx context.Context, selector string) (dom.Element, error) {
	all, err := e.QueryAll(ctx, selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if _, err := dom.Compile(selector); err != nil {
		return nil, err
	}
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	return wrapAll(ctx, els)
}

// Attached reports false for nodes the page has dropped or garbage
// collected.
func (e *element) Attached(ctx context.Context) (bool, error) {
	var ok bool
	if err := evalInto(ctx, e.el, &ok, `() => this.isConnected`); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return ok, nil
}
