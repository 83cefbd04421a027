package looma

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/looma/internal/sink"
)

// Sink is the output interface for index updates and theme events.
type Sink = sink.Sink

// Theme is the event carrying an extracted palette.
type Theme = sink.Theme

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, retries int, logger *slog.Logger) Sink {
	opts := []sink.WebhookOption{sink.WithWebhookLogger(logger)}
	if retries > 0 {
		opts = append(opts, sink.WithWebhookRetries(retries))
	}
	return sink.NewWebhook(url, opts...)
}

// UpdateFunc is called for each index update.
type UpdateFunc = sink.UpdateFunc

// ThemeFunc is called for each theme event.
type ThemeFunc = sink.ThemeFunc

// NewCallbackSink creates an in-process callback sink; zero serialisation.
func NewCallbackSink(
	onUpdate func(ctx context.Context, u indexer.Update) error,
	onTheme func(ctx context.Context, t Theme) error,
) Sink {
	return sink.NewCallback(onUpdate, onTheme)
}

// SinksFromConfig builds the configured sinks.
func SinksFromConfig(cfgs []SinkConfig, logger *slog.Logger) ([]Sink, error) {
	out := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, NewStdoutSink(nil))
		case "webhook":
			out = append(out, NewWebhookSink(c.URL, c.Retries, logger))
		default:
			return nil, fmt.Errorf("looma: sinks[%d]: unknown type %q", i, c.Type)
		}
	}
	return out, nil
}
