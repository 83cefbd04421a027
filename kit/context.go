package kit

import "context"

// Call describes the request an endpoint is serving. Transports fill it in
// before the endpoint runs; Logging reads it back.
type Call struct {
	Transport  string // "http" or "mcp"
	RequestID  string
	RemoteAddr string
}

type callKey struct{}

// CallFrom returns the call stored on ctx. Transport defaults to "http".
func CallFrom(ctx context.Context) Call {
	c, _ := ctx.Value(callKey{}).(Call)
	if c.Transport == "" {
		c.Transport = "http"
	}
	return c
}

// logAttrs lists the non-empty call fields as slog key/value pairs.
func (c Call) logAttrs() []any {
	attrs := []any{"transport", c.Transport}
	if c.RequestID != "" {
		attrs = append(attrs, "request_id", c.RequestID)
	}
	if c.RemoteAddr != "" {
		attrs = append(attrs, "remote_addr", c.RemoteAddr)
	}
	return attrs
}

func withCall(ctx context.Context, edit func(*Call)) context.Context {
	c, _ := ctx.Value(callKey{}).(Call)
	edit(&c)
	return context.WithValue(ctx, callKey{}, c)
}

func WithTransport(ctx context.Context, t string) context.Context {
	return withCall(ctx, func(c *Call) { c.Transport = t })
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return withCall(ctx, func(c *Call) { c.RequestID = id })
}

func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return withCall(ctx, func(c *Call) { c.RemoteAddr = addr })
}

func GetTransport(ctx context.Context) string  { return CallFrom(ctx).Transport }
func GetRequestID(ctx context.Context) string  { return CallFrom(ctx).RequestID }
func GetRemoteAddr(ctx context.Context) string { return CallFrom(ctx).RemoteAddr }
