package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/idgen"
	"github.com/hazyhaar/looma/mutation"
)

//go:embed observer.js
var observerJS string

const bindingName = "__looma_binding"

// Signals posted by observer.js.
const (
	signalNavigate = "__navigate"
	signalReady    = "__ready"
)

// NavigateTimeout bounds page loads.
const NavigateTimeout = 30 * time.Second

// ErrPageClosed is returned by a closed Page.
var ErrPageClosed = errors.New("browser: page is closed")

// Page is a Chrome tab seen as a dom.Document. Queries are answered by the
// live page; change batches come from the injected observer script.
type Page struct {
	mgr    *Manager
	logger *slog.Logger
	newID  idgen.Generator
	now    func() time.Time

	mu     sync.RWMutex
	page   *rod.Page
	router *rod.HijackRouter
	url    string
	seq    uint64
	closed bool
	stop   context.CancelFunc
	wg     sync.WaitGroup

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(mutation.Batch)
}

var _ dom.Document = (*Page)(nil)

func newPage(logger *slog.Logger) *Page {
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{
		logger: logger,
		newID:  idgen.Prefixed("bat_", idgen.Default),
		now:    time.Now,
	}
}

// Open creates a stealth tab on mgr's browser, installs the observer and
// loads pageURL.
func Open(ctx context.Context, mgr *Manager, pageURL string) (*Page, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, errors.New("browser: no active browser")
	}
	p := newPage(mgr.logger)
	p.mgr = mgr
	if err := p.attach(ctx, b, pageURL); err != nil {
		return nil, err
	}
	mgr.track(p)
	p.logger.Info("browser: page opened", "url", p.URL())
	return p, nil
}

// attach opens a fresh tab on b and loads pageURL into it.
func (p *Page) attach(ctx context.Context, b *rod.Browser, pageURL string) error {
	page, err := stealth.Page(b)
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}
	router := blockResources(page, p.mgr.cfg.ResourceBlocking)

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		p.logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}
	if err := (proto.DOMEnable{}).Call(page); err != nil {
		p.logger.Warn("browser: DOM.enable failed", "error", err)
	}
	if _, err := page.EvalOnNewDocument(observerJS); err != nil {
		closeTab(page, router)
		return fmt.Errorf("browser: inject observer: %w", err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	wait := page.Context(listenCtx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name == bindingName {
				p.handlePayload(e.Payload)
			}
		},
		func(*proto.DOMDocumentUpdated) {
			p.reset()
		},
	)

	p.mu.Lock()
	p.page, p.router, p.stop = page, router, stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		wait()
	}()

	if err := p.load(ctx, page, pageURL); err != nil {
		p.detach()
		return err
	}
	return nil
}

func (p *Page) load(ctx context.Context, page *rod.Page, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		p.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	final := pageURL
	if res, err := page.Context(navCtx).Eval(`() => location.href`); err == nil {
		if s := res.Value.Str(); s != "" {
			final = s
		}
	}
	p.setURL(final)
	return nil
}

// detach stops the listener and closes the tab. The subscribers stay.
func (p *Page) detach() {
	p.mu.Lock()
	page, router, stop := p.page, p.router, p.stop
	p.page, p.router, p.stop = nil, nil, nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
	p.wg.Wait()
	if page != nil {
		closeTab(page, router)
	}
}

func closeTab(page *rod.Page, router *rod.HijackRouter) {
	if router != nil {
		router.Stop()
	}
	page.Close()
}

// reattach reopens the page on a new browser after a recycle. Subscribers
// see a document reset.
func (p *Page) reattach(ctx context.Context, b *rod.Browser) error {
	p.mu.RLock()
	closed, u := p.closed, p.url
	p.mu.RUnlock()
	if closed {
		return nil
	}
	p.detach()
	if err := p.attach(ctx, b, u); err != nil {
		return err
	}
	p.reset()
	return nil
}

// Navigate loads u in the tab. It implements the session's navigator.
func (p *Page) Navigate(ctx context.Context, u string) error {
	page, err := p.current()
	if err != nil {
		return err
	}
	return p.load(ctx, page, u)
}

// Close closes the tab and drops every subscriber. Safe to call more than
// once.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.detach()
	if p.mgr != nil {
		p.mgr.untrack(p)
	}
	p.subMu.Lock()
	p.subs = nil
	p.subMu.Unlock()
	p.logger.Info("browser: page closed", "url", p.URL())
	return nil
}

func (p *Page) current() (*rod.Page, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.page == nil {
		return nil, ErrPageClosed
	}
	return p.page, nil
}

// URL is the last location the page reported.
func (p *Page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *Page) Query(ctx context.Context, selector string) (dom.Element, error) {
	all, err := p.QueryAll(ctx, selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

// QueryAll does not wait for matches to appear.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if _, err := dom.Compile(selector); err != nil {
		return nil, err
	}
	page, err := p.current()
	if err != nil {
		return nil, err
	}
	els, err := page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	return wrapAll(ctx, els)
}

func (p *Page) Root(ctx context.Context) (dom.Element, error) {
	el, err := p.Query(ctx, ":root")
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, errors.New("browser: document has no root element")
	}
	return el, nil
}

func (p *Page) Visible(ctx context.Context) (bool, error) {
	page, err := p.current()
	if err != nil {
		return false, err
	}
	res, err := page.Context(ctx).Eval(`() => document.visibilityState === "visible"`)
	if err != nil {
		return false, fmt.Errorf("browser: visibility: %w", err)
	}
	return res.Value.Bool(), nil
}

func (p *Page) Subscribe(fn func(mutation.Batch)) (func(), error) {
	if fn == nil {
		return nil, errors.New("browser: nil subscriber")
	}
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPageClosed
	}

	p.subMu.Lock()
	p.nextSub++
	id := p.nextSub
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	p.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.subMu.Lock()
			p.subs = slices.DeleteFunc(p.subs, func(s subscriber) bool { return s.id == id })
			p.subMu.Unlock()
		})
	}, nil
}

// handlePayload turns one observer post into batches: tree records go out
// as one batch, signals update the location.
func (p *Page) handlePayload(payload string) {
	records, signals, skipped, err := mutation.DecodePayload([]byte(payload))
	if err != nil {
		p.logger.Warn("browser: bad observer payload", "error", err)
		return
	}
	if skipped > 0 {
		p.logger.Debug("browser: skipped observer records", "count", skipped)
	}
	if len(records) > 0 {
		p.emit(mutation.Compress(records))
	}
	for _, s := range signals {
		switch s.Op {
		case signalNavigate, signalReady:
			if s.Value != "" {
				p.setURL(s.Value)
			}
		default:
			p.logger.Debug("browser: unknown observer signal", "op", s.Op)
		}
	}
}

// setURL records a location change and publishes it. Same-URL reports are
// dropped.
func (p *Page) setURL(u string) {
	p.mu.Lock()
	if p.url == u {
		p.mu.Unlock()
		return
	}
	old := p.url
	p.url = u
	p.mu.Unlock()
	if old == "" {
		return
	}
	p.emit([]mutation.Record{{Op: mutation.OpNavigate, Value: u, OldValue: old}})
}

func (p *Page) reset() {
	p.emit([]mutation.Record{{Op: mutation.OpDocReset}})
}

func (p *Page) emit(records []mutation.Record) {
	p.mu.Lock()
	p.seq++
	b := mutation.Batch{
		ID:        p.newID(),
		PageURL:   p.url,
		Seq:       p.seq,
		Records:   records,
		Timestamp: p.now().UnixMilli(),
	}
	p.mu.Unlock()

	p.subMu.Lock()
	subs := slices.Clone(p.subs)
	p.subMu.Unlock()
	for _, s := range subs {
		s.fn(b)
	}
}
