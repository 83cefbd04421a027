package looma

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/looma/looma/internal/browser"
)

// Browser owns a Chrome process. Re-exported from internal.
type Browser = browser.Manager

// Page is a Chrome tab usable as a Session document. It implements
// Navigator.
type Page = browser.Page

var _ Navigator = (*Page)(nil)

// NewBrowser maps cfg onto a browser manager and launches Chrome (or
// connects to cfg.Remote).
func NewBrowser(ctx context.Context, cfg BrowserConfig, logger *slog.Logger) (*Browser, error) {
	mode, err := browser.ParseMode(cfg.Stealth)
	if err != nil {
		return nil, err
	}
	m := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Remote,
		MemoryLimit:      cfg.MemoryLimit,
		RecycleInterval:  cfg.RecycleInterval,
		ResourceBlocking: cfg.ResourceBlocking,
		Mode:             mode,
		XvfbDisplay:      cfg.XvfbDisplay,
		Logger:           logger,
	})
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// OpenPage opens url in a new tab of b.
func OpenPage(ctx context.Context, b *Browser, url string) (*Page, error) {
	return browser.Open(ctx, b, url)
}
