// Package filesource serves a saved conversation page as a live document:
// the HTML file is parsed into an htmltree.Document and reparsed whenever
// it changes on disk, so the indexer sees the edits as a document reset.
package filesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/looma/dom/htmltree"
)

// DefaultDebounce is the quiet period after a write before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Config for Open.
type Config struct {
	Path string
	// URL is reported by the document. Empty takes the page's canonical
	// link (or og:url), re-read on every reload.
	URL      string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Source ties one file to one document.
type Source struct {
	cfg    Config
	logger *slog.Logger
	doc    *htmltree.Document

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	reloads int
}

// Open parses the file. Call Watch to follow changes.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("filesource: %w", err)
	}
	cfg.Path = abs

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("filesource: open: %w", err)
	}
	defer f.Close()
	doc, err := htmltree.Parse(f, htmltree.WithURL(cfg.URL), htmltree.WithLogger(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("filesource: %w", err)
	}

	s := &Source{cfg: cfg, logger: cfg.Logger, doc: doc}
	if cfg.URL == "" {
		s.syncURL(ctx)
	}
	return s, nil
}

// Document is the parsed page.
func (s *Source) Document() *htmltree.Document { return s.doc }

// Path is the absolute path of the file.
func (s *Source) Path() string { return s.cfg.Path }

// Reloads counts successful reloads.
func (s *Source) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

// Reload reparses the file into the document.
func (s *Source) Reload(ctx context.Context) error {
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("filesource: read: %w", err)
	}
	if err := s.doc.ReplaceString(string(data)); err != nil {
		return fmt.Errorf("filesource: reload: %w", err)
	}
	if s.cfg.URL == "" {
		s.syncURL(ctx)
	}
	s.mu.Lock()
	s.reloads++
	s.mu.Unlock()
	s.logger.Info("filesource: reloaded", "path", s.cfg.Path, "bytes", len(data))
	return nil
}

// syncURL copies the page's canonical URL onto the document; a change
// reaches subscribers as a navigation.
func (s *Source) syncURL(ctx context.Context) {
	for _, sel := range []string{`link[rel="canonical"]`, `meta[property="og:url"]`} {
		el, err := s.doc.Query(ctx, sel)
		if err != nil || el == nil {
			continue
		}
		attr := "href"
		if el.Tag() == "meta" {
			attr = "content"
		}
		if v, ok, _ := el.Attr(ctx, attr); ok && v != "" {
			s.doc.SetURL(v)
			return
		}
	}
}

// Watch starts following the file. The directory is watched rather than
// the file so that editors replacing it by rename are seen.
func (s *Source) Watch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filesource: watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.cfg.Path)); err != nil {
		w.Close()
		return fmt.Errorf("filesource: watch: %w", err)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.watcher, s.cancel, s.done = w, cancel, make(chan struct{})
	go s.loop(loopCtx, w, s.done)
	s.logger.Info("filesource: watching", "path", s.cfg.Path)
	return nil
}

func (s *Source) loop(ctx context.Context, w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.cfg.Path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(s.cfg.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("filesource: watcher error", "error", err)
		case <-timer.C:
			if err := s.Reload(ctx); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					s.logger.Debug("filesource: file gone, waiting", "path", s.cfg.Path)
					continue
				}
				s.logger.Warn("filesource: reload failed", "error", err)
			}
		}
	}
}

// Close stops watching. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	w, cancel, done := s.watcher, s.cancel, s.done
	s.watcher, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	cancel()
	<-done
	return w.Close()
}
