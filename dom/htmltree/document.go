// Package htmltree is an in-memory dom.Document built on x/net/html.
//
// Selectors are matched with cascadia; computed styles come from the
// document's own <style> sheets and inline style attributes (douceur
// parser); geometry comes from a simple block layout where every element
// stacks vertically inside its parent. That is enough to answer the
// questions the indexer and palette ask (is it rendered, what color is it,
// where does it sit in the page) against saved pages and test fixtures.
package htmltree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/idgen"
	"github.com/hazyhaar/looma/mutation"
)

// DefaultViewport is the layout width in CSS pixels.
const DefaultViewport = 1280

// ErrNoMatch is returned by edits whose selector matches nothing.
var ErrNoMatch = errors.New("htmltree: selector matched no element")

// Document is a mutable HTML tree. All methods are safe for concurrent use.
// Subscribers are called synchronously, after the edit is applied and the
// document lock released, in the goroutine that made the edit.
type Document struct {
	mu       sync.RWMutex
	root     *html.Node
	url      string
	hidden   bool
	version  uint64
	seq      uint64
	viewport float64

	newID  idgen.Generator
	now    func() time.Time
	logger *slog.Logger

	cacheMu sync.Mutex
	cache   *render

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(mutation.Batch)
}

// Option configures a Document.
type Option func(*Document)

// WithURL sets the page URL reported by URL and stamped on batches.
func WithURL(u string) Option { return func(d *Document) { d.url = u } }

// WithViewport sets the layout width.
func WithViewport(width float64) Option {
	return func(d *Document) {
		if width > 0 {
			d.viewport = width
		}
	}
}

// WithIDGenerator sets the generator for batch IDs.
func WithIDGenerator(g idgen.Generator) Option { return func(d *Document) { d.newID = g } }

// WithLogger sets the logger used for stylesheet diagnostics.
func WithLogger(l *slog.Logger) Option { return func(d *Document) { d.logger = l } }

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmltree: parse: %w", err)
	}
	d := &Document{
		root:     root,
		viewport: DefaultViewport,
		newID:    idgen.Prefixed("bat_", idgen.Default),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// MustParse is ParseString that panics on error. For fixtures.
func MustParse(s string, opts ...Option) *Document {
	d, err := ParseString(s, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// URL returns the page URL.
func (d *Document) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

// SetURL changes the page URL without touching the tree. Subscribers get
// a navigate batch when the URL actually changed.
func (d *Document) SetURL(u string) {
	d.mu.Lock()
	if d.url == u {
		d.mu.Unlock()
		return
	}
	old := d.url
	d.url = u
	d.seq++
	batch := mutation.Batch{
		ID:        d.newID(),
		PageURL:   u,
		Seq:       d.seq,
		Records:   []mutation.Record{{Op: mutation.OpNavigate, Value: u, OldValue: old}},
		Timestamp: d.now().UnixMilli(),
	}
	d.mu.Unlock()
	d.publish(batch)
}

// Navigate is SetURL for callers that drive navigation generically. The
// tree is left as is; load the new page's markup with Replace.
func (d *Document) Navigate(_ context.Context, u string) error {
	d.SetURL(u)
	return nil
}

// SetHidden marks the page as backgrounded (true) or foregrounded.
func (d *Document) SetHidden(hidden bool) {
	d.mu.Lock()
	d.hidden = hidden
	d.mu.Unlock()
}

// Visible implements dom.Document.
func (d *Document) Visible(context.Context) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.hidden, nil
}

// Query implements dom.Document.
func (d *Document) Query(_ context.Context, selector string) (dom.Element, error) {
	g, err := dom.Compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := cascadia.Query(d.root, g)
	if n == nil {
		return nil, nil
	}
	return d.wrap(n), nil
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	g, err := dom.Compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrapAll(cascadia.QueryAll(d.root, g)), nil
}

// Root implements dom.Document.
func (d *Document) Root(context.Context) (dom.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return d.wrap(c), nil
		}
	}
	return nil, errors.New("htmltree: document has no root element")
}

// HTML serialises the whole document.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return renderNode(d.root)
}

// Subscribe implements dom.Document.
func (d *Document) Subscribe(fn func(mutation.Batch)) (func(), error) {
	if fn == nil {
		return nil, errors.New("htmltree: nil subscriber")
	}
	d.subMu.Lock()
	d.nextSub++
	id := d.nextSub
	d.subs = append(d.subs, subscriber{id: id, fn: fn})
	d.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.subMu.Lock()
			d.subs = slices.DeleteFunc(d.subs, func(s subscriber) bool { return s.id == id })
			d.subMu.Unlock()
		})
	}, nil
}

func (d *Document) publish(b mutation.Batch) {
	d.subMu.Lock()
	subs := slices.Clone(d.subs)
	d.subMu.Unlock()
	for _, s := range subs {
		s.fn(b)
	}
}

// render returns the style and layout cache for the current version.
// Callers hold d.mu (read or write).
func (d *Document) render() *render {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	if d.cache == nil || d.cache.version != d.version {
		d.cache = buildRender(d.root, d.version, d.viewport, d.logger)
	}
	return d.cache
}

func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	html.Render(&buf, n)
	return buf.String()
}
