// Package looma runs the conversation index and theme extraction for one
// chat page. A Session resolves the page's platform, waits for its
// conversation to render, starts an indexer engine and fans every update
// out to sinks. It reinitializes on navigation.
//
// The page is any dom.Document: an in-memory snapshot (dom/htmltree) or a
// live Chrome tab (see Browser).
package looma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/idgen"
	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/locator"
	"github.com/hazyhaar/looma/looma/internal/sink"
	"github.com/hazyhaar/looma/mutation"
	"github.com/hazyhaar/looma/palette"
)

// Navigator is a document that can load another URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Options configures a Session.
type Options struct {
	// Indexer tunes the engine. Notify is owned by the Session and ignored.
	Indexer indexer.Config
	// ReadyTimeout bounds the wait for the conversation container, per
	// attempt. Default: 10s.
	ReadyTimeout time.Duration
	// RetryAttempts is the number of initialization attempts. Default: 3.
	RetryAttempts int
	// RetryBackoff is multiplied by the attempt number between attempts.
	// Default: 2s.
	RetryBackoff time.Duration
	Settings     Settings
	Logger       *slog.Logger
	Sinks        []Sink
	// NewID stamps theme events. Default: "thm_" + UUIDv7.
	NewID idgen.Generator
	Now   func() time.Time
}

func (o *Options) defaults() {
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 10 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewID == nil {
		o.NewID = idgen.Prefixed("thm_", idgen.Default)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Indexer.Logger == nil {
		o.Indexer.Logger = o.Logger
	}
}

// Session owns one engine at a time for one document. Create it with New,
// call Start, and Close when done.
type Session struct {
	doc     dom.Document
	opts    Options
	logger  *slog.Logger
	router  *sink.Router
	palette *palette.Extractor

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// opMu serialises Start, Navigate, reinitialization and Close.
	opMu sync.Mutex

	mu        sync.RWMutex
	engine    *indexer.Engine
	engCancel context.CancelFunc
	profile   locator.Profile
	url       string
	inits     int
	closed    bool
	unsub     func()
}

// New creates a Session over doc. Nothing runs until Start.
func New(doc dom.Document, opts Options) *Session {
	opts.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		doc:     doc,
		opts:    opts,
		logger:  opts.Logger,
		router:  sink.NewRouter(opts.Logger, opts.Sinks...),
		palette: palette.NewExtractor(palette.WithLogger(opts.Logger)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start resolves the platform from the document URL, waits for the
// conversation and starts indexing. Calling Start again tears the current
// engine down and starts over. Initialization is retried; the terminal
// failure is an *ErrInitFailed.
func (s *Session) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(ctx, s.doc.URL())
}

// start runs under opMu.
func (s *Session) start(ctx context.Context, url string) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := s.watchNavigation(); err != nil {
		return err
	}
	s.teardown()

	profile := locator.Resolve(url)
	if !profile.Supported() {
		s.logger.Warn("looma: unsupported platform, using generic profile", "url", url)
	}

	// Notify runs on the engine loop; engCtx lets teardown interrupt a slow
	// sink without waiting for Close.
	engCtx, engCancel := context.WithCancel(s.ctx)
	var (
		engine  *indexer.Engine
		ready   locator.Profile
		records []indexer.Record
		lastErr error
	)
	attempts := 0
	for attempt := 1; attempt <= s.opts.RetryAttempts; attempt++ {
		attempts = attempt
		engine, ready, records, lastErr = s.attempt(ctx, engCtx, profile)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil || s.ctx.Err() != nil {
			engCancel()
			if s.ctx.Err() != nil {
				return ErrClosed
			}
			return ctx.Err()
		}
		s.logger.Warn("looma: initialization attempt failed",
			"platform", profile.Name, "attempt", attempt, "of", s.opts.RetryAttempts, "error", lastErr)
		if attempt == s.opts.RetryAttempts {
			break
		}
		if err := sleep(ctx, s.ctx, s.opts.RetryBackoff*time.Duration(attempt)); err != nil {
			engCancel()
			return err
		}
	}
	if lastErr != nil {
		engCancel()
		s.logger.Error("looma: initialization failed",
			"platform", profile.Name, "attempts", attempts, "error", lastErr)
		return &ErrInitFailed{Attempts: attempts, Cause: lastErr}
	}

	s.mu.Lock()
	s.engine = engine
	s.engCancel = engCancel
	s.profile = ready
	s.url = url
	s.inits++
	s.mu.Unlock()

	s.logger.Info("looma: session started",
		"platform", ready.Name, "ui_version", ready.UIVersion, "url", url, "queries", len(records))

	pal := s.palette.Extract(ctx, s.doc, ready)
	s.emitTheme(engCtx, ready, pal)
	return nil
}

// attempt makes one readiness wait plus engine initialization.
func (s *Session) attempt(ctx, engCtx context.Context, p locator.Profile) (*indexer.Engine, locator.Profile, []indexer.Record, error) {
	ready, err := locator.WaitUntilReady(ctx, s.doc, p, s.opts.ReadyTimeout)
	if err != nil {
		return nil, p, nil, err
	}
	cfg := s.opts.Indexer
	cfg.Notify = func(u indexer.Update) {
		if err := s.router.Send(engCtx, u); err != nil {
			s.logger.Debug("looma: update delivery incomplete", "update", u.ID, "error", err)
		}
	}
	engine := indexer.New(cfg)
	records, err := engine.Initialize(ctx, s.doc, ready)
	if err != nil {
		engine.Destroy()
		return nil, ready, nil, err
	}
	return engine, ready, records, nil
}

func sleep(ctx, sessionCtx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-sessionCtx.Done():
		return ErrClosed
	}
}

// teardown destroys the current engine. Runs under opMu.
func (s *Session) teardown() {
	s.mu.Lock()
	engine, cancel := s.engine, s.engCancel
	s.engine, s.engCancel = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if engine != nil {
		engine.Destroy()
	}
}

// watchNavigation subscribes once to the document for navigate records.
// Runs under opMu.
func (s *Session) watchNavigation() error {
	s.mu.RLock()
	subscribed := s.unsub != nil
	s.mu.RUnlock()
	if subscribed {
		return nil
	}
	unsub, err := s.doc.Subscribe(s.onBatch)
	if err != nil {
		return fmt.Errorf("looma: subscribe: %w", err)
	}
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

// onBatch runs on the document's goroutine and must not block.
func (s *Session) onBatch(b mutation.Batch) {
	url := ""
	for _, r := range b.Records {
		if r.Op == mutation.OpNavigate {
			url = r.Value
		}
	}
	if url == "" {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.navigated(url)
	}()
}

// navigated reinitializes for a URL the page moved to on its own.
func (s *Session) navigated(url string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.RLock()
	current, closed := s.url, s.closed
	s.mu.RUnlock()
	if closed || current == url {
		return
	}
	s.logger.Info("looma: navigation detected", "from", current, "to", url)
	if err := s.start(s.ctx, url); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Error("looma: reinitialize after navigation", "url", url, "error", err)
	}
}

// Navigate loads url in the document and reinitializes for it.
func (s *Session) Navigate(ctx context.Context, url string) error {
	nav, ok := s.doc.(Navigator)
	if !ok {
		return ErrCannotNavigate
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	if err := nav.Navigate(ctx, url); err != nil {
		return fmt.Errorf("looma: navigate: %w", err)
	}
	return s.start(ctx, url)
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) current() (*indexer.Engine, locator.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, locator.Profile{}, ErrClosed
	}
	if s.engine == nil {
		return nil, locator.Profile{}, ErrNotStarted
	}
	return s.engine, s.profile, nil
}

// Refresh rescans now and always notifies the sinks.
func (s *Session) Refresh(ctx context.Context) ([]indexer.Record, error) {
	engine, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return engine.Refresh(ctx)
}

// Queries returns the current index.
func (s *Session) Queries() ([]indexer.Record, error) {
	engine, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return engine.Queries(), nil
}

// Locate finds the live element for a query ID.
func (s *Session) Locate(ctx context.Context, id string) (dom.Element, error) {
	engine, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return engine.Locate(ctx, id)
}

// Palette returns the theme palette for the current page, sampling it on
// first use.
func (s *Session) Palette(ctx context.Context) (palette.Palette, error) {
	_, p, err := s.current()
	if err != nil {
		return palette.Palette{}, err
	}
	return s.palette.Extract(ctx, s.doc, p), nil
}

// ThemeChanged re-samples the palette after the page switched themes and
// emits it to the sinks.
func (s *Session) ThemeChanged(ctx context.Context) (palette.Palette, error) {
	_, p, err := s.current()
	if err != nil {
		return palette.Palette{}, err
	}
	pal := s.palette.ThemeChanged(ctx, s.doc, p)
	s.emitTheme(ctx, p, pal)
	return pal, nil
}

func (s *Session) emitTheme(ctx context.Context, p locator.Profile, pal palette.Palette) {
	t := sink.Theme{
		ID:        s.opts.NewID(),
		Platform:  p.Name,
		UIVersion: p.UIVersion,
		Palette:   pal,
		Dark:      palette.IsDark(pal.Surface),
		Timestamp: s.opts.Now().UnixMilli(),
	}
	if err := s.router.SendTheme(ctx, t); err != nil {
		s.logger.Debug("looma: theme delivery incomplete", "theme", t.ID, "error", err)
	}
}

// Profile returns the resolved profile, stamped with the detected UI
// version.
func (s *Session) Profile() (locator.Profile, error) {
	_, p, err := s.current()
	return p, err
}

// Stats reports the engine counters. Before Start it carries the zero
// state.
func (s *Session) Stats() indexer.Stats {
	s.mu.RLock()
	engine, p := s.engine, s.profile
	s.mu.RUnlock()
	if engine == nil {
		return indexer.Stats{Platform: p.Name}
	}
	return engine.Stats()
}

// Active reports whether an engine is observing the page.
func (s *Session) Active() bool {
	switch s.Stats().State {
	case indexer.StateObserving, indexer.StateRescanning:
		return true
	}
	return false
}

// Settings returns the presentation settings the host configured.
func (s *Session) Settings() Settings { return s.opts.Settings }

// AddSink registers another output for updates and theme events.
func (s *Session) AddSink(sk Sink) { s.router.Add(sk) }

// Close stops the engine, waits for pending reinitializations and closes
// the sinks. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	s.cancel()
	if unsub != nil {
		unsub()
	}
	s.wg.Wait()

	s.opMu.Lock()
	s.teardown()
	s.opMu.Unlock()

	s.logger.Info("looma: session closed")
	return s.router.Close()
}
