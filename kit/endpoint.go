// Package kit holds the transport-neutral endpoint shape shared by the
// HTTP control API and the MCP tool surface: one function per operation,
// decorated by middleware, exposed through thin transport adapters.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is a single operation. req and the response are plain values;
// transports handle decoding and encoding.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middleware so the first one listed runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call of the named endpoint at debug level, and
// failures at warn.
func Logging(logger *slog.Logger, name string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := append([]any{"endpoint", name, "duration", time.Since(start)}, CallFrom(ctx).logAttrs()...)
			if err != nil {
				logger.Warn("kit: endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("kit: endpoint served", attrs...)
			}
			return resp, err
		}
	}
}
