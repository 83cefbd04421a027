// Package sink defines output backends for index updates and theme changes.
package sink

import (
	"context"

	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/palette"
)

// Sink is the output interface. Implementations deliver updates to
// different backends (stdout, webhook, websocket, in-process callback).
type Sink interface {
	Send(ctx context.Context, u indexer.Update) error
	SendTheme(ctx context.Context, t Theme) error
	Close() error
}

// Theme is emitted when a palette is extracted for a page, and again on
// every explicit theme change.
type Theme struct {
	ID        string          `json:"id"`
	Platform  string          `json:"platform"`
	UIVersion string          `json:"ui_version"`
	Palette   palette.Palette `json:"palette"`
	Dark      bool            `json:"dark"` // surface is dark
	Timestamp int64           `json:"timestamp"`
}

type envelope struct {
	Type string `json:"type"` // "update" | "theme"
	Data any    `json:"data"`
}

// Envelope wraps a payload the way every serialising sink frames it.
func Envelope(typ string, data any) any {
	return envelope{Type: typ, Data: data}
}
