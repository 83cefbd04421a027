package looma

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/kit"
	"github.com/hazyhaar/looma/locator"
	"github.com/hazyhaar/looma/palette"
)

// RegisterMCP registers the session's tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerQueriesTool(srv)
	s.registerRefreshTool(srv)
	s.registerLocateTool(srv)
	s.registerPaletteTool(srv)
	s.registerStatsTool(srv)
	s.registerNavigateTool(srv)
	s.registerResolveTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// --- queries ---

type queriesRequest struct {
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type queriesResponse struct {
	Platform string           `json:"platform"`
	Total    int              `json:"total"`
	Queries  []indexer.Record `json:"queries"`
}

func (s *Session) registerQueriesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "looma_queries",
		Description: "List the user queries of the current conversation in document order, optionally filtered by text.",
		InputSchema: inputSchema(map[string]any{
			"search": map[string]any{"type": "string", "description": "Case-insensitive substring filter on query text"},
			"limit":  map[string]any{"type": "integer", "description": "Max results (default all)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*queriesRequest)
		all, err := s.Queries()
		if err != nil {
			return nil, err
		}
		p, _ := s.Profile()
		return queriesResponse{
			Platform: p.Name,
			Total:    len(all),
			Queries:  indexer.Filter(all, r.Search, r.Limit),
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.instrument("looma_queries", endpoint), kit.DecodeJSON[queriesRequest]())
}

// --- refresh ---

func (s *Session) registerRefreshTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "looma_refresh",
		Description: "Rescan the conversation now and return the fresh query index.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		qs, err := s.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		p, _ := s.Profile()
		return queriesResponse{Platform: p.Name, Total: len(qs), Queries: qs}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.instrument("looma_refresh", endpoint), kit.DecodeJSON[struct{}]())
}

// --- locate ---

type locateRequest struct {
	ID string `json:"id"`
}

// LocateResult describes where a query's message lives in the page.
type LocateResult struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Element dom.Summary `json:"element"`
}

// LocateSummary re-resolves a query and describes its element.
func (s *Session) LocateSummary(ctx context.Context, id string) (LocateResult, error) {
	el, err := s.Locate(ctx, id)
	if err != nil {
		return LocateResult{}, err
	}
	sum, err := dom.Describe(ctx, el)
	if err != nil {
		return LocateResult{}, err
	}
	res := LocateResult{ID: id, Element: sum}
	if qs, err := s.Queries(); err == nil {
		for _, q := range qs {
			if q.ID == id {
				res.Text = q.Text
				break
			}
		}
	}
	return res, nil
}

func (s *Session) registerLocateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "looma_locate",
		Description: "Find the live page element of a query by its ID and return its position.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Query ID (query_<index>_<hash>)"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*locateRequest)
		if r.ID == "" {
			return nil, errors.New("id is required")
		}
		return s.LocateSummary(ctx, r.ID)
	}

	kit.RegisterMCPTool(srv, tool, s.instrument("looma_locate", endpoint), kit.DecodeJSON[locateRequest]())
}

// --- palette ---

type paletteRequest struct {
	Resample bool `json:"resample,omitempty"`
}

// PaletteResult is a palette with its derived theme brightness.
type PaletteResult struct {
	Platform string          `json:"platform"`
	Palette  palette.Palette `json:"palette"`
	Dark     bool            `json:"dark"`
}

func (s *Session) registerPaletteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "looma_palette",
		Description: "Return the page's theme palette (primary, secondary, accent, surface, border).",
		InputSchema: inputSchema(map[string]any{
			"resample": map[string]any{"type": "boolean", "description": "Sample the page again instead of using the cached palette"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*paletteRequest)
		var (
			pal palette.Palette
			err error
		)
		if r.Resample {
			pal, err = s.ThemeChanged(ctx)
		} else {
			pal, err = s.Palette(ctx)
		}
		if err != nil {
			return nil, err
		}
		p, _ := s.Profile()
		return PaletteResult{Platform: p.Name, Palette: pal, Dark: palette.IsDark(pal.Surface)}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.instrument("looma_palette", endpoint), kit.DecodeJSON[paletteRequest]())
}

// --- stats ---

type statsResponse struct {
	indexer.Stats
	Active   bool     `json:"active"`
	Settings Settings `json:"settings"`
}

func (s *Session) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "looma_stats",
		Description: "Report indexing activity: platform, engine state, query count, scans and notifications.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return statsResponse{Stats: s.Stats(), Active: s.Active(), Settings: s.Settings()}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.instrument("looma_stats", endpoint), kit.DecodeJSON[struct{}]())
}

// --- navigate ---

type navigateRequest struct {
	URL string `json:"url"`
}

func (s *Session) registerNavigateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "looma_navigate",
		Description: "Load another conversation URL and reindex it.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute URL of the conversation"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*navigateRequest)
		if _, err := locator.ResolveURL(r.URL); err != nil {
			return nil, err
		}
		if err := s.Navigate(ctx, r.URL); err != nil {
			return nil, err
		}
		return s.Profile()
	}

	kit.RegisterMCPTool(srv, tool, s.instrument("looma_navigate", endpoint), kit.DecodeJSON[navigateRequest]())
}

// --- resolve ---

type resolveRequest struct {
	Host string `json:"host"`
}

func (s *Session) registerResolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "looma_resolve",
		Description: "Map a chat host or URL to its platform profile (selectors used to find user messages).",
		InputSchema: inputSchema(map[string]any{
			"host": map[string]any{"type": "string", "description": "Hostname or URL, e.g. chatgpt.com"},
		}, []string{"host"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*resolveRequest)
		if strings.TrimSpace(r.Host) == "" {
			return nil, errors.New("host is required")
		}
		return locator.Resolve(r.Host), nil
	}

	kit.RegisterMCPTool(srv, tool, s.instrument("looma_resolve", endpoint), kit.DecodeJSON[resolveRequest]())
}

func (s *Session) instrument(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, name))(e)
}
