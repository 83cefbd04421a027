package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/dom/htmltree"
	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/locator"
	"github.com/hazyhaar/looma/palette"
)

const page = `<html><head><style>nav { background: #171717; }</style></head><body><nav>x</nav><main>
<div data-testid="conversation-turn">
  <div data-message-author-role="user" data-message-id="m1"><div class="whitespace-pre-wrap">How do I reverse a list?</div></div>
  <div data-message-author-role="user" data-message-id="m2"><div class="whitespace-pre-wrap">What about maps?</div></div>
</div></main></body></html>`

var errNotStarted = errors.New("not started")

type fakeService struct {
	doc       *htmltree.Document
	eng       *indexer.Engine
	profile   locator.Profile
	palettes  *palette.Extractor
	navigated string
	stopped   bool
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newFake(t *testing.T) *fakeService {
	t.Helper()
	doc := htmltree.MustParse(page, htmltree.WithURL("https://chatgpt.com/c/1"))
	p, _ := locator.Lookup(locator.ChatGPT)
	eng := indexer.New(indexer.Config{Debounce: time.Hour, Backstop: time.Hour, Logger: discard()})
	if _, err := eng.Initialize(context.Background(), doc, p); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(eng.Destroy)
	return &fakeService{doc: doc, eng: eng, profile: p, palettes: palette.NewExtractor(palette.WithLogger(discard()))}
}

func (f *fakeService) Queries() ([]indexer.Record, error) {
	if f.stopped {
		return nil, errNotStarted
	}
	return f.eng.Queries(), nil
}
func (f *fakeService) Refresh(ctx context.Context) ([]indexer.Record, error) {
	return f.eng.Refresh(ctx)
}
func (f *fakeService) Locate(ctx context.Context, id string) (dom.Element, error) {
	return f.eng.Locate(ctx, id)
}
func (f *fakeService) Navigate(_ context.Context, url string) error {
	f.navigated = url
	return nil
}
func (f *fakeService) Profile() (locator.Profile, error) { return f.profile, nil }
func (f *fakeService) Palette(ctx context.Context) (palette.Palette, error) {
	return f.palettes.Extract(ctx, f.doc, f.profile), nil
}
func (f *fakeService) ThemeChanged(ctx context.Context) (palette.Palette, error) {
	return f.palettes.ThemeChanged(ctx, f.doc, f.profile), nil
}
func (f *fakeService) Stats() indexer.Stats { return f.eng.Stats() }
func (f *fakeService) Active() bool         { return !f.stopped }

func newTestServer(t *testing.T, svc Service) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{
		Service: svc,
		Logger:  discard(),
		StatusOf: func(err error) int {
			if errors.Is(err, errNotStarted) {
				return http.StatusServiceUnavailable
			}
			return 0
		},
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Hub().Close()
		ts.Close()
	})
	return s, ts
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestRoutes(t *testing.T) {
	f := newFake(t)
	_, ts := newTestServer(t, f)

	var health map[string]any
	if code := do(t, "GET", ts.URL+"/health", "", &health); code != 200 || health["status"] != "ok" || health["active"] != true {
		t.Errorf("health = %d %v", code, health)
	}

	var qs QueriesResponse
	if code := do(t, "GET", ts.URL+"/queries", "", &qs); code != 200 || qs.Total != 2 || qs.Platform != locator.ChatGPT {
		t.Fatalf("queries = %d %+v", code, qs)
	}
	if code := do(t, "GET", ts.URL+"/queries?search=maps&limit=5", "", &qs); code != 200 || len(qs.Queries) != 1 {
		t.Errorf("filtered = %d %+v", code, qs)
	}

	var errBody map[string]string
	if code := do(t, "GET", ts.URL+"/queries?limit=x", "", &errBody); code != 400 || !strings.Contains(errBody["error"], "limit") {
		t.Errorf("bad limit = %d %v", code, errBody)
	}

	id := f.eng.Queries()[1].ID
	var loc LocateResponse
	if code := do(t, "GET", ts.URL+"/queries/"+id+"/locate", "", &loc); code != 200 || loc.ID != id || !loc.Element.Attached {
		t.Errorf("locate = %d %+v", code, loc)
	}
	if code := do(t, "GET", ts.URL+"/queries/query_7_nope/locate", "", &errBody); code != 404 {
		t.Errorf("unknown locate = %d %v", code, errBody)
	}

	if err := f.doc.Append("main", `<div data-message-author-role="user"><div class="whitespace-pre-wrap">Third one</div></div>`); err != nil {
		t.Fatal(err)
	}
	if code := do(t, "POST", ts.URL+"/refresh", "", &qs); code != 200 || qs.Total != 3 {
		t.Errorf("refresh = %d %+v", code, qs)
	}

	var pal PaletteResponse
	if code := do(t, "GET", ts.URL+"/palette", "", &pal); code != 200 || pal.Palette.Surface != "#171717" || !pal.Dark {
		t.Errorf("palette = %d %+v", code, pal)
	}
	if code := do(t, "POST", ts.URL+"/theme", "", &pal); code != 200 || pal.Platform != locator.ChatGPT {
		t.Errorf("theme = %d %+v", code, pal)
	}

	var st struct {
		State   string `json:"state"`
		Queries int    `json:"queries"`
		Active  bool   `json:"active"`
		Clients int    `json:"ws_clients"`
	}
	if code := do(t, "GET", ts.URL+"/stats", "", &st); code != 200 || st.State != "observing" || st.Queries != 3 || !st.Active {
		t.Errorf("stats = %d %+v", code, st)
	}

	var prof locator.Profile
	if code := do(t, "GET", ts.URL+"/profile", "", &prof); code != 200 || prof.Name != locator.ChatGPT {
		t.Errorf("profile = %d %+v", code, prof)
	}
}

func TestNavigate(t *testing.T) {
	f := newFake(t)
	_, ts := newTestServer(t, f)

	var errBody map[string]string
	if code := do(t, "POST", ts.URL+"/navigate", `{"url":"no host"}`, &errBody); code != 400 {
		t.Errorf("bad url = %d %v", code, errBody)
	}
	if code := do(t, "POST", ts.URL+"/navigate", `{`, &errBody); code != 400 {
		t.Errorf("bad body = %d %v", code, errBody)
	}
	var prof locator.Profile
	if code := do(t, "POST", ts.URL+"/navigate", `{"url":"https://chatgpt.com/c/2"}`, &prof); code != 200 {
		t.Fatalf("navigate = %d", code)
	}
	if f.navigated != "https://chatgpt.com/c/2" {
		t.Errorf("navigated = %q", f.navigated)
	}
}

func TestStatusMapping(t *testing.T) {
	f := newFake(t)
	f.stopped = true
	s, ts := newTestServer(t, f)

	var errBody map[string]string
	if code := do(t, "GET", ts.URL+"/queries", "", &errBody); code != http.StatusServiceUnavailable {
		t.Errorf("not started = %d %v", code, errBody)
	}

	tests := []struct {
		err  error
		want int
	}{
		{indexer.ErrQueryNotFound, 404},
		{indexer.ErrElementNotFound, 404},
		{indexer.ErrEngineDestroyed, 503},
		{&locator.ErrPlatformTimeout{Platform: "chatgpt"}, 504},
		{errors.New("other"), 500},
	}
	for _, tt := range tests {
		if got := s.status(tt.err); got != tt.want {
			t.Errorf("status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHub_StreamsUpdates(t *testing.T) {
	f := newFake(t)
	s, ts := newTestServer(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/updates", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	if s.Hub().Clients() != 1 {
		t.Fatalf("clients = %d, want 1", s.Hub().Clients())
	}
	if err := s.Hub().Send(ctx, indexer.Update{ID: "upd_1", Platform: "chatgpt", Reason: indexer.ReasonRefresh}); err != nil {
		t.Fatal(err)
	}

	_, msg, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var env struct {
		Type string         `json:"type"`
		Data indexer.Update `json:"data"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "update" || env.Data.ID != "upd_1" || env.Data.Reason != indexer.ReasonRefresh {
		t.Errorf("envelope = %+v", env)
	}

	s.Hub().Close()
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Errorf("read after close: %v", err)
	}
	if err := s.Hub().Send(ctx, indexer.Update{ID: "upd_2"}); err != nil {
		t.Errorf("send after close: %v", err)
	}
}

func TestHub_ClosedRejects(t *testing.T) {
	h := NewHub(discard())
	h.Close()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/ws/updates", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", rec.Code)
	}
}
