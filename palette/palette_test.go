package palette

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/dom/htmltree"
	"github.com/hazyhaar/looma/locator"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"#FFF", "#ffffff", true},
		{"#10a37f", "#10a37f", true},
		{" rgb(33, 33, 33) ", "#212121", true},
		{"rgba(255,255,255,0.1)", "rgba(255, 255, 255, 0.1)", true},
		{"rgba(255, 255, 255, 1)", "#ffffff", true},
		{"rgb(255 255 255 / 50%)", "rgba(255, 255, 255, 0.5)", true},
		{"rgb(100%, 0%, 0%)", "#ff0000", true},
		{"hsl(0, 100%, 50%)", "#ff0000", true},
		{"hsla(120deg, 100%, 25%, 0.5)", "rgba(0, 128, 0, 0.5)", true},
		{"#ff000080", "rgba(255, 0, 0, 0.502)", true},
		{"#0008", "rgba(0, 0, 0, 0.533)", true},
		{"transparent", "rgba(0, 0, 0, 0)", true},
		{"White", "#ffffff", true},
		{"notacolor", "", false},
		{"rgb(1, 2)", "", false},
		{"#12345", "", false},
		{"#ggg", "", false},
		{"hsl(10, 20, 30)", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLuminanceAndContrast(t *testing.T) {
	if got := Contrast("#ffffff", "#000000"); math.Abs(got-21) > 1e-9 {
		t.Errorf("Contrast(white, black) = %v, want 21", got)
	}
	if got := Contrast("#777777", "#777777"); got != 1 {
		t.Errorf("Contrast(same) = %v, want 1", got)
	}
	if Contrast("#000000", "#ffffff") != Contrast("#ffffff", "#000000") {
		t.Error("Contrast is not symmetric")
	}
	if got := Luminance("garbage"); got != 0.5 {
		t.Errorf("Luminance(garbage) = %v, want 0.5", got)
	}
	// alpha is ignored
	if Luminance("rgba(255, 255, 255, 0.1)") != Luminance("#ffffff") {
		t.Error("Luminance should ignore alpha")
	}
	if !IsDark("#212121") || IsDark("#f0f0f0") {
		t.Error("IsDark misclassified")
	}
}

func TestValidate_ContrastInvariant(t *testing.T) {
	colors := []string{
		"#000000", "#ffffff", "#777777", "#212121", "#ececf1", "#10a37f",
		"#1a73e8", "#ff0000", "#2a2a2a", "#f0f0f0", "rgba(0, 0, 0, 0.5)", "bogus",
	}
	for _, accent := range colors {
		for _, surface := range colors {
			p := Validate(Palette{Primary: "#111111", Secondary: "#222222", Accent: accent, Surface: surface, Border: "#333333"})
			if c := Contrast(p.Accent, p.Surface); c < MinContrast {
				t.Errorf("accent=%s surface=%s: contrast %.2f after validation (%s on %s)", accent, surface, c, p.Accent, p.Surface)
			}
			for _, s := range Slots {
				if _, ok := Normalize(p.Get(s)); !ok {
					t.Errorf("slot %s invalid after validation: %q", s, p.Get(s))
				}
			}
		}
	}
}

func TestValidate_Defaults(t *testing.T) {
	p := Validate(Palette{})
	if p != Fallback {
		t.Errorf("Validate(empty) = %+v, want %+v", p, Fallback)
	}
}

func perplexity(t *testing.T, markup string) (*htmltree.Document, locator.Profile) {
	t.Helper()
	doc, err := htmltree.ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	return doc, locator.Resolve("www.perplexity.ai")
}

func TestExtract_AccentDefaultThenContrast(t *testing.T) {
	ctx := context.Background()

	// no accent probe resolves: default #ffffff survives on a dark surface
	doc, p := perplexity(t, `<html><body><div class="thread-container" style="background-color:#2c2d30">x</div></body></html>`)
	pal := NewExtractor().Extract(ctx, doc, p)
	if pal.Accent != "#ffffff" {
		t.Errorf("dark surface: accent = %q, want #ffffff", pal.Accent)
	}

	// same default on a light surface fails contrast and flips to black
	doc, p = perplexity(t, `<html><body><div class="thread-container" style="background-color:#f0f0f0">x</div></body></html>`)
	pal = NewExtractor().Extract(ctx, doc, p)
	if pal.Surface != "#f0f0f0" {
		t.Errorf("surface = %q", pal.Surface)
	}
	if pal.Accent != "#000000" {
		t.Errorf("light surface: accent = %q, want #000000", pal.Accent)
	}
}

func TestExtract_Perplexity(t *testing.T) {
	doc, p := perplexity(t, `<html><head><style>
		.card { background-color: #202222 }
		.tile { background-color: rgb(44, 45, 48) }
		hr { border-color: rgba(255, 255, 255, 0.2) }
	</style></head><body>
		<div class="card">a</div><div class="card">b</div><div class="card">c</div>
		<div class="tile">d</div><div class="tile">e</div>
		<button type="submit" style="background-color: #20808d">go</button>
		<div class="user-input-container" style="color: #e0e0e0">q</div>
		<hr>
	</body></html>`)

	got := NewExtractor().Extract(context.Background(), doc, p)
	want := Palette{
		Primary:   "#202222",
		Secondary: "#20808d",
		Accent:    "#e0e0e0",
		Surface:   "#2c2d30", // default: no thread-container, main is transparent
		Border:    "rgba(255, 255, 255, 0.2)",
	}
	if got != want {
		t.Errorf("got  %+v\nwant %+v", got, want)
	}
}

func TestExtract_ChatGPTAlternatePrimary(t *testing.T) {
	doc := htmltree.MustParse(`<html><head><style>
		:root { --border-light: rgba(255,255,255,0.15); }
		.dark\:bg-gray-800 { background-color: #343541; }
	</style></head><body>
		<nav style="background-color:#171717">n</nav>
		<div class="dark:bg-gray-800">
			<div data-message-author-role="user" style="color:#ececf1">hi there</div>
		</div>
		<button data-testid="send-button" style="background-color:#19c37d">send</button>
	</body></html>`)
	p := locator.Resolve("chatgpt.com")

	got := NewExtractor().Extract(context.Background(), doc, p)
	want := Palette{
		Primary:   "#343541", // body is transparent
		Secondary: "#19c37d",
		Accent:    "#ececf1",
		Surface:   "#171717",
		Border:    "rgba(255, 255, 255, 0.15)",
	}
	if got != want {
		t.Errorf("got  %+v\nwant %+v", got, want)
	}
}

func TestExtract_GeminiVars(t *testing.T) {
	doc := htmltree.MustParse(`<html><head><style>
		:root {
			--surface-container: #1f1f1f;
			--primary: #8ab4f8;
			--on-surface: #e3e3e3;
			--surface-container-high: #282a2c;
		}
	</style></head><body><div class="conversation-container">x</div></body></html>`)
	p := locator.Resolve("gemini.google.com")

	got := NewExtractor().Extract(context.Background(), doc, p)
	want := Palette{
		Primary:   "#1f1f1f",
		Secondary: "#8ab4f8",
		Accent:    "#e3e3e3",
		Surface:   "#282a2c",
		Border:    "rgba(255, 255, 255, 0.12)", // --outline-variant unset
	}
	if got != want {
		t.Errorf("got  %+v\nwant %+v", got, want)
	}
}

func TestExtract_UnknownPlatform(t *testing.T) {
	doc := htmltree.MustParse(`<html><body style="background:#fff">x</body></html>`)
	got := NewExtractor().Extract(context.Background(), doc, locator.Generic())
	if got != Fallback {
		t.Errorf("got %+v, want Fallback", got)
	}
}

type countingDoc struct {
	dom.Document
	queryAll atomic.Int32
}

func (c *countingDoc) QueryAll(ctx context.Context, sel string) ([]dom.Element, error) {
	c.queryAll.Add(1)
	return c.Document.QueryAll(ctx, sel)
}

func TestExtractor_CacheAndThemeChange(t *testing.T) {
	ctx := context.Background()
	tree, p := perplexity(t, `<html><body><div style="background-color:#101010">a</div></body></html>`)
	doc := &countingDoc{Document: tree}
	x := NewExtractor()

	var wg sync.WaitGroup
	results := make([]Palette, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = x.Extract(ctx, doc, p)
		}(i)
	}
	wg.Wait()
	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatalf("concurrent extracts disagree: %+v vs %+v", r, results[0])
		}
	}
	if n := doc.queryAll.Load(); n != 1 {
		t.Errorf("document sampled %d times, want 1", n)
	}
	if results[0].Primary != "#101010" {
		t.Errorf("primary = %q", results[0].Primary)
	}

	// theme switch: cached value holds until ThemeChanged
	if err := tree.SetAttr("div", "style", "background-color:#fafafa"); err != nil {
		t.Fatal(err)
	}
	if got := x.Extract(ctx, doc, p); got.Primary != "#101010" {
		t.Errorf("cache not used: primary = %q", got.Primary)
	}
	if got := x.ThemeChanged(ctx, doc, p); got.Primary != "#fafafa" {
		t.Errorf("ThemeChanged primary = %q", got.Primary)
	}
	if got, ok := x.Cached(p); !ok || got.Primary != "#fafafa" {
		t.Errorf("cache not replaced: %+v %v", got, ok)
	}

	// a different UI version is a different key
	if _, ok := x.Cached(p.WithUIVersion("other")); ok {
		t.Error("unexpected cache hit for other version")
	}
	x.Forget()
	if _, ok := x.Cached(p); ok {
		t.Error("Forget did not clear the cache")
	}
}

func TestProbe_ErrorFallsThrough(t *testing.T) {
	doc := htmltree.MustParse(`<html><body><p style="color:#abcdef">x</p></body></html>`)
	x := NewExtractor()
	s := Strategy{Probes: map[Slot][]Probe{
		SlotAccent: {Computed{"p[[", "color"}, Computed{".missing", "color"}, Computed{"p", "color"}},
	}}
	if got := x.probe(context.Background(), doc, s, SlotAccent); got != "#abcdef" {
		t.Errorf("probe = %q, want #abcdef", got)
	}
}

func TestDominant_LimitAndTies(t *testing.T) {
	doc := htmltree.MustParse(`<html><body>
		<div style="background-color:#111111">a</div>
		<div style="background-color:#222222">b</div>
		<div style="background-color:#222222">c</div>
	</body></html>`)
	ctx := context.Background()

	got, err := Dominant{}.Sample(ctx, doc)
	if err != nil || got != "#222222" {
		t.Errorf("Dominant = %q, %v", got, err)
	}
	// body comes first in document order, then the first div
	got, _ = Dominant{Limit: 2}.Sample(ctx, doc)
	if got != "#111111" {
		t.Errorf("Dominant(limit 2) = %q, want #111111", got)
	}
}
