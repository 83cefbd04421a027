package sink

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hazyhaar/looma/indexer"
)

// Router fans out to all configured sinks. One sink error does not block
// the others: errors are logged and the first encountered is returned.
// Sinks can be added while the router is in use.
type Router struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add registers another sink.
func (r *Router) Add(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

func (r *Router) snapshot() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sinks)
}

func (r *Router) Send(ctx context.Context, u indexer.Update) error {
	var firstErr error
	for _, s := range r.snapshot() {
		if err := s.Send(ctx, u); err != nil {
			r.logger.Warn("sink: send update failed", "update", u.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendTheme(ctx context.Context, t Theme) error {
	var firstErr error
	for _, s := range r.snapshot() {
		if err := s.SendTheme(ctx, t); err != nil {
			r.logger.Warn("sink: send theme failed", "theme", t.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.snapshot() {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
