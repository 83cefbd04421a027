package looma

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/dom/htmltree"
	"github.com/hazyhaar/looma/idgen"
	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/locator"
)

func themedChat(surface, text string) string {
	return `<!DOCTYPE html>
<html><head><style>
body { background: #212121; color: ` + text + `; }
nav { background: ` + surface + `; }
</style></head><body>
<nav>History</nav>
<main>
  <div data-testid="conversation-turn">
    <div data-message-author-role="user" data-message-id="m1">
      <div class="whitespace-pre-wrap">How do I reverse a list in Go?</div>
    </div>
    <div data-message-author-role="assistant"><div class="markdown">Use slices.Reverse.</div></div>
    <div data-message-author-role="user" data-message-id="m2">
      <div class="whitespace-pre-wrap">What about maps?</div>
    </div>
  </div>
</main>
</body></html>`
}

var chatPage = themedChat("#171717", "#ececec")

const geminiPage = `<!DOCTYPE html>
<html><body>
<div class="conversation-container">
  <div data-message-author="user"><div class="message-content">Plan a trip to Lisbon</div></div>
  <div data-message-author="assistant"><div class="message-content">Sure.</div></div>
</div>
</body></html>`

type recorder struct {
	updates chan indexer.Update
	themes  chan Theme
}

func newRecorder() *recorder {
	return &recorder{
		updates: make(chan indexer.Update, 64),
		themes:  make(chan Theme, 64),
	}
}

func (r *recorder) sink() Sink {
	return NewCallbackSink(
		func(_ context.Context, u indexer.Update) error { r.updates <- u; return nil },
		func(_ context.Context, t Theme) error { r.themes <- t; return nil },
	)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testOptions(r *recorder) Options {
	return Options{
		Indexer:       indexer.Config{Debounce: time.Hour, Backstop: time.Hour},
		ReadyTimeout:  100 * time.Millisecond,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
		Logger:        discard(),
		Sinks:         []Sink{r.sink()},
		NewID:         idgen.Prefixed("thm_", idgen.Sequence()),
	}
}

func newSession(t *testing.T, doc dom.Document, r *recorder) *Session {
	t.Helper()
	ignore := goleak.IgnoreCurrent()
	s := New(doc, testOptions(r))
	t.Cleanup(func() {
		s.Close()
		goleak.VerifyNone(t, ignore)
	})
	return s
}

func waitUpdate(t *testing.T, ch <-chan indexer.Update, match func(indexer.Update) bool) indexer.Update {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-ch:
			if match(u) {
				return u
			}
		case <-deadline:
			t.Fatal("no matching update")
			return indexer.Update{}
		}
	}
}

func waitTheme(t *testing.T, ch <-chan Theme) Theme {
	t.Helper()
	select {
	case th := <-ch:
		return th
	case <-time.After(3 * time.Second):
		t.Fatal("no theme event")
	}
	return Theme{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession_Start(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	r := newRecorder()
	s := newSession(t, doc, r)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	p, err := s.Profile()
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != locator.ChatGPT || p.UIVersion != "new-ui" {
		t.Errorf("profile = %s/%s, want chatgpt/new-ui", p.Name, p.UIVersion)
	}

	th := waitTheme(t, r.themes)
	if th.ID != "thm_1" || th.Platform != locator.ChatGPT || !th.Dark {
		t.Errorf("theme = %+v", th)
	}

	u := waitUpdate(t, r.updates, func(u indexer.Update) bool { return u.Reason == indexer.ReasonInitial })
	if len(u.Queries) != 2 || u.Queries[1].Text != "What about maps?" {
		t.Errorf("initial update queries = %+v", u.Queries)
	}

	qs, err := s.Queries()
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 2 {
		t.Fatalf("queries = %d, want 2", len(qs))
	}
	if !s.Active() {
		t.Error("session should be active")
	}
	if st := s.Stats(); st.Platform != locator.ChatGPT || st.Queries != 2 || st.Scans != 1 {
		t.Errorf("stats = %+v", st)
	}

	el, err := s.Locate(context.Background(), qs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if id, _, _ := el.Attr(context.Background(), "data-message-id"); id != "m1" {
		t.Errorf("located data-message-id = %q", id)
	}
}

func TestSession_NotStarted(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	s := newSession(t, doc, newRecorder())

	if _, err := s.Queries(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Queries err = %v, want ErrNotStarted", err)
	}
	if _, err := s.Refresh(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Refresh err = %v, want ErrNotStarted", err)
	}
	if _, err := s.Palette(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Palette err = %v, want ErrNotStarted", err)
	}
	if s.Active() {
		t.Error("session should not be active")
	}
}

func TestSession_InitFailedAfterRetries(t *testing.T) {
	doc := htmltree.MustParse(`<html><body><p>loading</p></body></html>`,
		htmltree.WithURL("https://chatgpt.com/"))
	s := newSession(t, doc, newRecorder())

	err := s.Start(context.Background())
	var failed *ErrInitFailed
	if !errors.As(err, &failed) {
		t.Fatalf("err = %v, want *ErrInitFailed", err)
	}
	if failed.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", failed.Attempts)
	}
	var timeout *locator.ErrPlatformTimeout
	if !errors.As(err, &timeout) || timeout.Platform != locator.ChatGPT {
		t.Errorf("cause = %v, want platform timeout", failed.Cause)
	}
	if _, err := s.Queries(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Queries err = %v, want ErrNotStarted", err)
	}
}

func TestSession_StartCancelled(t *testing.T) {
	doc := htmltree.MustParse(`<html><body></body></html>`, htmltree.WithURL("https://chatgpt.com/"))
	s := newSession(t, doc, newRecorder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSession_UnsupportedPlatform(t *testing.T) {
	doc := htmltree.MustParse(`<html><body><div class="chat">
  <div class="user-message"><div class="message-content">hello there</div></div>
</div></body></html>`, htmltree.WithURL("https://example.com/chat"))
	s := newSession(t, doc, newRecorder())

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Profile()
	if p.Name != locator.Unknown {
		t.Errorf("profile = %s, want unknown", p.Name)
	}
	qs, _ := s.Queries()
	if len(qs) != 1 || qs[0].Text != "hello there" {
		t.Errorf("queries = %+v", qs)
	}
}

func TestSession_RefreshNotifies(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	r := newRecorder()
	s := newSession(t, doc, r)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitUpdate(t, r.updates, func(u indexer.Update) bool { return u.Reason == indexer.ReasonInitial })

	qs, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 2 {
		t.Errorf("refresh queries = %d", len(qs))
	}
	waitUpdate(t, r.updates, func(u indexer.Update) bool { return u.Reason == indexer.ReasonRefresh })
}

func TestSession_ThemeChanged(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	r := newRecorder()
	s := newSession(t, doc, r)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := waitTheme(t, r.themes)

	if err := doc.ReplaceString(themedChat("#f9f9f9", "#0d0d0d")); err != nil {
		t.Fatal(err)
	}
	pal, err := s.ThemeChanged(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second := waitTheme(t, r.themes)
	if second.ID == first.ID {
		t.Error("theme event not re-emitted")
	}
	if second.Palette != pal {
		t.Errorf("emitted palette %+v, returned %+v", second.Palette, pal)
	}
	if second.Dark {
		t.Errorf("light page reported dark: surface %s", pal.Surface)
	}
	cached, _ := s.Palette(context.Background())
	if cached != pal {
		t.Errorf("cached palette = %+v, want %+v", cached, pal)
	}
}

func TestSession_NavigationDetected(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	r := newRecorder()
	s := newSession(t, doc, r)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := doc.ReplaceString(geminiPage); err != nil {
		t.Fatal(err)
	}
	doc.SetURL("https://gemini.google.com/app/42")

	u := waitUpdate(t, r.updates, func(u indexer.Update) bool { return u.Platform == locator.Gemini })
	if len(u.Queries) != 1 || u.Queries[0].Text != "Plan a trip to Lisbon" {
		t.Errorf("gemini queries = %+v", u.Queries)
	}
	waitFor(t, "gemini profile", func() bool {
		p, err := s.Profile()
		return err == nil && p.Name == locator.Gemini && p.UIVersion == "gemini"
	})
}

func TestSession_Navigate(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	r := newRecorder()
	s := newSession(t, doc, r)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := doc.ReplaceString(geminiPage); err != nil {
		t.Fatal(err)
	}
	if err := s.Navigate(context.Background(), "https://gemini.google.com/app/7"); err != nil {
		t.Fatal(err)
	}
	p, err := s.Profile()
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != locator.Gemini {
		t.Errorf("profile = %s, want gemini", p.Name)
	}
	if doc.URL() != "https://gemini.google.com/app/7" {
		t.Errorf("document url = %s", doc.URL())
	}
	// The navigate batch the document emitted must not restart the engine
	// a second time.
	time.Sleep(50 * time.Millisecond)
	if st := s.Stats(); st.Scans != 1 {
		t.Errorf("scans = %d, want 1", st.Scans)
	}
}

type fixedDocument struct{ dom.Document }

func TestSession_NavigateUnsupported(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	s := newSession(t, fixedDocument{doc}, newRecorder())
	if err := s.Navigate(context.Background(), "https://gemini.google.com/"); !errors.Is(err, ErrCannotNavigate) {
		t.Fatalf("err = %v, want ErrCannotNavigate", err)
	}
}

func TestSession_Close(t *testing.T) {
	doc := htmltree.MustParse(chatPage, htmltree.WithURL("https://chatgpt.com/c/1"))
	s := New(doc, testOptions(newRecorder()))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.Queries(); !errors.Is(err, ErrClosed) {
		t.Errorf("Queries err = %v, want ErrClosed", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start err = %v, want ErrClosed", err)
	}
	// Navigation after Close is ignored.
	doc.SetURL("https://gemini.google.com/")
}

func TestSession_Settings(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := OptionsFromConfig(cfg, discard())
	if err != nil {
		t.Fatal(err)
	}
	s := New(htmltree.MustParse(chatPage), opts)
	defer s.Close()
	got := s.Settings()
	if !got.IsEnabled() || got.SidebarWidth != 320 || got.Theme != "adaptive" {
		t.Errorf("settings = %+v", got)
	}
}
