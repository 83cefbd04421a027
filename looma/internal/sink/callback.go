package sink

import (
	"context"

	"github.com/hazyhaar/looma/indexer"
)

// UpdateFunc is called for each index update.
type UpdateFunc func(ctx context.Context, u indexer.Update) error

// ThemeFunc is called for each theme event.
type ThemeFunc func(ctx context.Context, t Theme) error

// Callback delivers events as in-process function calls with no
// serialisation, for hosts embedding a Session.
type Callback struct {
	onUpdate UpdateFunc
	onTheme  ThemeFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onUpdate UpdateFunc, onTheme ThemeFunc) *Callback {
	return &Callback{onUpdate: onUpdate, onTheme: onTheme}
}

func (c *Callback) Send(ctx context.Context, u indexer.Update) error {
	if c.onUpdate != nil {
		return c.onUpdate(ctx, u)
	}
	return nil
}

func (c *Callback) SendTheme(ctx context.Context, t Theme) error {
	if c.onTheme != nil {
		return c.onTheme(ctx, t)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
