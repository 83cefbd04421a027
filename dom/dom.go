// Package dom is the read-only view of a rendered document that the
// locator, palette and indexer packages work against. Two backends exist:
// dom/htmltree (an in-memory tree, used for snapshots and tests) and the
// live Chrome page in looma/internal/browser.
package dom

import (
	"context"
	"strconv"

	"github.com/hazyhaar/looma/mutation"
)

// Rect is an element's bounding box in document coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Element is a node of the document. Implementations hold a live reference:
// once the node leaves the tree, Attached reports false and every other
// call keeps answering from the detached node (or fails, for the page
// backend).
type Element interface {
	// Tag is the lower-case tag name.
	Tag() string
	// Path is the element's position in document order, fixed when the
	// element handle was obtained.
	Path() Path

	Attr(ctx context.Context, name string) (string, bool, error)
	// Text is the rendered plain-text projection of the subtree.
	Text(ctx context.Context) (string, error)
	// Style returns the computed value of a CSS property, custom properties
	// included. Unknown properties yield "".
	Style(ctx context.Context, prop string) (string, error)
	Rect(ctx context.Context) (Rect, error)

	Matches(ctx context.Context, selector string) (bool, error)
	// Query returns the first matching descendant, or nil.
	Query(ctx context.Context, selector string) (Element, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	Attached(ctx context.Context) (bool, error)
}

// Document is a queryable tree that reports its own changes.
type Document interface {
	URL() string
	// Query returns the first matching element in document order, or nil.
	Query(ctx context.Context, selector string) (Element, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Root returns the document element (<html>).
	Root(ctx context.Context) (Element, error)
	// Visible reports whether the page is in the foreground.
	Visible(ctx context.Context) (bool, error)
	// Subscribe registers fn for every change batch. The returned function
	// removes the subscription; it is safe to call more than once.
	Subscribe(fn func(mutation.Batch)) (cancel func(), err error)
}

// Path is a list of child indexes from the document root.
type Path []int

// Compare orders two paths in document order: -1 if a precedes b, 1 if it
// follows, 0 if equal. An ancestor precedes its descendants.
func Compare(a, b Path) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func (p Path) String() string {
	b := make([]byte, 0, len(p)*3)
	for i, n := range p {
		if i > 0 {
			b = append(b, '/')
		}
		b = strconv.AppendInt(b, int64(n), 10)
	}
	return string(b)
}
