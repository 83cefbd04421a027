// Package indexer keeps an ordered index of the user queries in a
// conversation document and keeps it in sync as the document changes.
//
// An Engine scans the whole document once on Initialize, then listens to
// the document's change batches. A batch touching a user message arms a
// debounce deadline; when it lapses the loop runs one full scan. A backstop
// ticker rescans a visible document periodically to catch changes the
// batches did not describe (removals, style flips). All scans run on the
// engine's single loop goroutine and replace the index wholesale.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/idgen"
	"github.com/hazyhaar/looma/locator"
	"github.com/hazyhaar/looma/mutation"
)

// Default intervals.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultBackstop = 2 * time.Second
)

// Config for creating an Engine.
type Config struct {
	// Debounce is the quiet period after the last relevant change before a
	// rescan runs. Default: 500ms.
	Debounce time.Duration
	// Backstop is the interval of unconditional rescans while the document
	// is visible. Default: 2s.
	Backstop time.Duration
	Logger   *slog.Logger
	// Notify receives updates from the engine loop, one at a time. It must
	// not call Destroy.
	Notify func(Update)
	Now    func() time.Time
	// NewID stamps update IDs. Default: "upd_" + UUIDv7.
	NewID idgen.Generator
}

func (c *Config) defaults() {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Backstop <= 0 {
		c.Backstop = DefaultBackstop
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = idgen.Prefixed("upd_", idgen.Default)
	}
}

// Engine indexes one document under one profile. It is single-use: once
// destroyed, create a new one.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	doc         dom.Document
	profile     locator.Profile
	records     []Record
	waiters     []chan error
	stats       Stats
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}

	// Single-slot signals to the loop.
	changed chan struct{}
	refresh chan struct{}
}

// New creates an Engine. Nothing runs until Initialize.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:     cfg,
		logger:  cfg.Logger,
		changed: make(chan struct{}, 1),
		refresh: make(chan struct{}, 1),
	}
}

// Initialize runs the first full scan of doc, subscribes to its changes
// and starts the loop. The returned records are a copy of the index.
func (e *Engine) Initialize(ctx context.Context, doc dom.Document, p locator.Profile) ([]Record, error) {
	e.mu.Lock()
	switch e.state {
	case StateDestroyed:
		e.mu.Unlock()
		return nil, ErrEngineDestroyed
	case StateUninitialized:
	default:
		e.mu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	e.state = StateScanning
	e.doc = doc
	e.profile = p
	e.cancel = cancel
	e.stats.Platform = p.Name
	e.mu.Unlock()

	watch, err := compileAll(p.UserMessageLocators())
	if err != nil {
		return nil, e.initFailed(p, err)
	}

	// Destroy during the first scan must abandon it.
	scanCtx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(loopCtx, stop)
	defer unlink()

	res, err := e.scan(scanCtx, doc, p)
	if err != nil {
		return nil, e.initFailed(p, err)
	}

	unsub, err := doc.Subscribe(func(b mutation.Batch) { e.onBatch(b, watch) })
	if err != nil {
		return nil, e.initFailed(p, fmt.Errorf("subscribe: %w", err))
	}

	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		unsub()
		return nil, ErrEngineDestroyed
	}
	e.commit(res)
	e.unsubscribe = unsub
	e.done = make(chan struct{})
	e.state = StateObserving
	out := slices.Clone(res.records)
	go e.loop(loopCtx, e.done, doc, p, slices.Clone(res.records))
	e.mu.Unlock()

	e.logger.Info("indexer: initialized",
		"platform", p.Name, "url", doc.URL(), "queries", len(out))
	return out, nil
}

// initFailed rolls a failed Initialize back so it can be retried, unless
// Destroy got there first.
func (e *Engine) initFailed(p locator.Profile, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return ErrEngineDestroyed
	}
	e.state = StateUninitialized
	e.doc = nil
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return &ErrScanFailed{Platform: p.Name, Cause: err}
}

func compileAll(selectors []string) ([]cascadia.SelectorGroup, error) {
	out := make([]cascadia.SelectorGroup, 0, len(selectors))
	for _, sel := range selectors {
		g, err := dom.Compile(sel)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// onBatch runs on the document's goroutine. It never scans, only signals.
func (e *Engine) onBatch(b mutation.Batch, watch []cascadia.SelectorGroup) {
	if !relevant(b, watch) {
		return
	}
	select {
	case e.changed <- struct{}{}:
	default:
	}
}

// relevant reports whether a batch may have changed the set of user
// messages: a document reset, or an inserted or re-texted element, or one
// whose attributes were set or removed, that is or contains a user message.
// A truncated fragment cannot be ruled out and counts as relevant.
func relevant(b mutation.Batch, watch []cascadia.SelectorGroup) bool {
	for _, r := range mutation.Compress(b.Records) {
		switch r.Op {
		case mutation.OpDocReset:
			return true
		case mutation.OpInsert, mutation.OpAttr, mutation.OpAttrDel, mutation.OpText:
			if r.Truncated || dom.FragmentMatches(r.HTML, watch...) {
				return true
			}
		}
	}
	return false
}

// Refresh runs a full scan through the loop and returns the new index.
// It always notifies, even when nothing changed.
func (e *Engine) Refresh(ctx context.Context) ([]Record, error) {
	e.mu.Lock()
	switch e.state {
	case StateDestroyed:
		e.mu.Unlock()
		return nil, ErrEngineDestroyed
	case StateUninitialized, StateScanning:
		e.mu.Unlock()
		return nil, ErrNotInitialized
	}
	w := make(chan error, 1)
	e.waiters = append(e.waiters, w)
	e.mu.Unlock()

	select {
	case e.refresh <- struct{}{}:
	default:
	}

	select {
	case err := <-w:
		if err != nil {
			return nil, err
		}
		return e.Queries(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Queries returns a copy of the current index.
func (e *Engine) Queries() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.records)
}

// State returns the lifecycle stage.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns activity counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.State = e.state
	s.Queries = len(e.records)
	return s
}

// Destroy stops the engine: it drops the subscription, stops the timers,
// waits for the loop to exit and clears the index. Pending Refresh calls
// fail with ErrEngineDestroyed. Safe to call more than once.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return
	}
	e.state = StateDestroyed
	unsub, cancel, done := e.unsubscribe, e.cancel, e.done
	waiters := e.waiters
	e.unsubscribe, e.cancel, e.waiters = nil, nil, nil
	e.records = nil
	platform := e.profile.Name
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	for _, w := range waiters {
		w <- ErrEngineDestroyed
	}
	e.logger.Info("indexer: destroyed", "platform", platform)
}

func (e *Engine) notify(reason Reason, platform string, records []Record) {
	if e.cfg.Notify == nil {
		return
	}
	e.mu.Lock()
	e.stats.Notifications++
	e.mu.Unlock()
	e.cfg.Notify(Update{
		ID:        e.cfg.NewID(),
		Platform:  platform,
		Reason:    reason,
		Queries:   records,
		Timestamp: e.cfg.Now().UnixMilli(),
	})
}
