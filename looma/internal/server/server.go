// Package server exposes a running session over HTTP: a JSON control API
// routed with chi and a websocket stream of index updates.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/kit"
	"github.com/hazyhaar/looma/locator"
	"github.com/hazyhaar/looma/palette"
)

// Service is the session surface the API drives.
type Service interface {
	Queries() ([]indexer.Record, error)
	Refresh(ctx context.Context) ([]indexer.Record, error)
	Locate(ctx context.Context, id string) (dom.Element, error)
	Navigate(ctx context.Context, url string) error
	Profile() (locator.Profile, error)
	Palette(ctx context.Context) (palette.Palette, error)
	ThemeChanged(ctx context.Context) (palette.Palette, error)
	Stats() indexer.Stats
	Active() bool
}

// Config for creating a Server.
type Config struct {
	Service Service
	Hub     *Hub
	Logger  *slog.Logger
	// StatusOf maps service errors the server does not know to an HTTP
	// status; 0 falls through to the defaults.
	StatusOf func(error) int
}

// Server serves the control API.
type Server struct {
	svc      Service
	hub      *Hub
	logger   *slog.Logger
	statusOf func(error) int
	router   chi.Router
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(cfg.Logger)
	}
	s := &Server{
		svc:      cfg.Service,
		hub:      cfg.Hub,
		logger:   cfg.Logger,
		statusOf: cfg.StatusOf,
	}
	s.router = s.routes()
	return s
}

// Hub returns the websocket hub; register it as a session sink.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Get("/health", s.handle("health", s.health, nil))
	r.Get("/queries", s.handle("queries", s.queries, decodeQueries))
	r.Get("/queries/{id}/locate", s.handle("locate", s.locate, decodeLocate))
	r.Post("/refresh", s.handle("refresh", s.refresh, nil))
	r.Post("/navigate", s.handle("navigate", s.navigate, decodeNavigate))
	r.Get("/profile", s.handle("profile", s.profile, nil))
	r.Get("/palette", s.handle("palette", s.palette, nil))
	r.Post("/theme", s.handle("theme", s.theme, nil))
	r.Get("/stats", s.handle("stats", s.stats, nil))
	r.Get("/ws/updates", s.hub.ServeHTTP)
	return r
}

// requestID carries chi's request ID into the kit context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(kit.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handle(name string, e kit.Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	e = kit.Chain(kit.Logging(s.logger, name), s.mapErrors)(e)
	return kit.HTTPHandler(e, decode)
}

// mapErrors tags endpoint errors with their HTTP status.
func (s *Server) mapErrors(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		resp, err := next(ctx, req)
		if err == nil {
			return resp, nil
		}
		return nil, kit.WithStatus(s.status(err), err)
	}
}

func (s *Server) status(err error) int {
	var se *kit.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	if s.statusOf != nil {
		if code := s.statusOf(err); code != 0 {
			return code
		}
	}
	var timeout *locator.ErrPlatformTimeout
	switch {
	case errors.Is(err, indexer.ErrQueryNotFound), errors.Is(err, indexer.ErrElementNotFound):
		return http.StatusNotFound
	case errors.Is(err, indexer.ErrNotInitialized), errors.Is(err, indexer.ErrEngineDestroyed):
		return http.StatusServiceUnavailable
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// --- endpoints ---

type queriesRequest struct {
	Search string
	Limit  int
}

// QueriesResponse is the body of GET /queries and POST /refresh.
type QueriesResponse struct {
	Platform string           `json:"platform"`
	Total    int              `json:"total"`
	Queries  []indexer.Record `json:"queries"`
}

func decodeQueries(r *http.Request) (any, error) {
	q := r.URL.Query()
	req := &queriesRequest{Search: q.Get("search")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("limit %q: want a non-negative integer", v)
		}
		req.Limit = n
	}
	return req, nil
}

func (s *Server) platform() string {
	p, _ := s.svc.Profile()
	return p.Name
}

func (s *Server) health(_ context.Context, _ any) (any, error) {
	return map[string]any{"status": "ok", "active": s.svc.Active()}, nil
}

func (s *Server) queries(_ context.Context, req any) (any, error) {
	r := req.(*queriesRequest)
	all, err := s.svc.Queries()
	if err != nil {
		return nil, err
	}
	return QueriesResponse{Platform: s.platform(), Total: len(all), Queries: indexer.Filter(all, r.Search, r.Limit)}, nil
}

func (s *Server) refresh(ctx context.Context, _ any) (any, error) {
	qs, err := s.svc.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return QueriesResponse{Platform: s.platform(), Total: len(qs), Queries: qs}, nil
}

// LocateResponse is the body of GET /queries/{id}/locate.
type LocateResponse struct {
	ID      string      `json:"id"`
	Element dom.Summary `json:"element"`
}

func decodeLocate(r *http.Request) (any, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return nil, errors.New("missing query id")
	}
	return id, nil
}

func (s *Server) locate(ctx context.Context, req any) (any, error) {
	id := req.(string)
	el, err := s.svc.Locate(ctx, id)
	if err != nil {
		return nil, err
	}
	sum, err := dom.Describe(ctx, el)
	if err != nil {
		return nil, err
	}
	return LocateResponse{ID: id, Element: sum}, nil
}

type navigateRequest struct {
	URL string `json:"url"`
}

func decodeNavigate(r *http.Request) (any, error) {
	var req navigateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if _, err := locator.ResolveURL(req.URL); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Server) navigate(ctx context.Context, req any) (any, error) {
	r := req.(*navigateRequest)
	if err := s.svc.Navigate(ctx, r.URL); err != nil {
		return nil, err
	}
	return s.svc.Profile()
}

func (s *Server) profile(_ context.Context, _ any) (any, error) {
	return s.svc.Profile()
}

// PaletteResponse is the body of GET /palette and POST /theme.
type PaletteResponse struct {
	Platform string          `json:"platform"`
	Palette  palette.Palette `json:"palette"`
	Dark     bool            `json:"dark"`
}

func (s *Server) palette(ctx context.Context, _ any) (any, error) {
	pal, err := s.svc.Palette(ctx)
	if err != nil {
		return nil, err
	}
	return PaletteResponse{Platform: s.platform(), Palette: pal, Dark: palette.IsDark(pal.Surface)}, nil
}

func (s *Server) theme(ctx context.Context, _ any) (any, error) {
	pal, err := s.svc.ThemeChanged(ctx)
	if err != nil {
		return nil, err
	}
	return PaletteResponse{Platform: s.platform(), Palette: pal, Dark: palette.IsDark(pal.Surface)}, nil
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	indexer.Stats
	Active  bool `json:"active"`
	Clients int  `json:"ws_clients"`
}

func (s *Server) stats(_ context.Context, _ any) (any, error) {
	return StatsResponse{Stats: s.svc.Stats(), Active: s.svc.Active(), Clients: s.hub.Clients()}, nil
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("server: listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	<-errCh
	s.logger.Info("server: stopped")
	return nil
}
