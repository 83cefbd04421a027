package indexer

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/looma/dom/htmltree"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello   world \n", "hello world"},
		{"zero\u200bwidth", "zerowidth"},
		{"\ufeffbom \u200c\u200d joined", "bom joined"},
		{"a\t\tb\r\nc", "a b c"},
		{" \u200b ", ""},
		{"déjà   vu", "déjà vu"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	words := strings.Repeat("abcd ", 20)
	tests := []struct {
		name, in, want string
	}{
		{"short", "short text", "short text"},
		{"exact", strings.Repeat("x", 60), strings.Repeat("x", 60)},
		{"no spaces", strings.Repeat("a", 70), strings.Repeat("a", 60) + "..."},
		{"word boundary", words, words[:59] + "..."},
		{"early space", strings.Repeat("x", 30) + " " + strings.Repeat("y", 40),
			strings.Repeat("x", 30) + " " + strings.Repeat("y", 29) + "..."},
		{"runes", strings.Repeat("é", 61), strings.Repeat("é", 60) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, TruncateLimit); got != tt.want {
				t.Errorf("Truncate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate_Bounds(t *testing.T) {
	for n := 0; n < 200; n += 7 {
		s := Normalize(strings.Repeat("lorem ipsum ", n/12+1)[:n])
		got := Truncate(s, TruncateLimit)
		if c := utf8.RuneCountInString(got); c > TruncateLimit+3 {
			t.Fatalf("len(Truncate(%d chars)) = %d", n, c)
		}
		if utf8.RuneCountInString(s) <= TruncateLimit && got != s {
			t.Fatalf("Truncate changed a short string: %q -> %q", s, got)
		}
	}
}

func TestQueryID(t *testing.T) {
	if got := QueryID("abc", 0); got != "query_0_22ci" {
		t.Errorf("QueryID(abc, 0) = %q", got)
	}
	if got := QueryID("", 4); got != "query_4_0" {
		t.Errorf("QueryID(empty, 4) = %q", got)
	}
	if QueryID("same", 1) != QueryID("same", 1) {
		t.Error("QueryID not deterministic")
	}
	if QueryID("same", 1) == QueryID("same", 2) {
		t.Error("QueryID ignores index")
	}
	if h := textHash(strings.Repeat("overflow", 40)); strings.HasPrefix(h, "-") {
		t.Errorf("textHash negative: %q", h)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00+02:00", time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00.250Z", time.Date(2024, 3, 1, 10, 0, 0, 250e6, time.UTC)},
		{"2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"Jan 2, 2024, 3:04 PM", time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)},
		{"  1/2/2024 9:30 AM ", time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "10:00", "yesterday", "3:04 PM"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) succeeded", bad)
		}
	}
}

func TestElementSelector(t *testing.T) {
	doc := htmltree.MustParse(`<html><body>
<div id="msg:1">a</div>
<div data-message-id="m-2" class="x">b</div>
<div data-testid="turn 3">c</div>
<div class="one two three four">d</div>
<div>e</div>
</body></html>`)
	ctx := context.Background()
	els, err := doc.QueryAll(ctx, "body > div")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		`#msg\:1`,
		`[data-message-id="m-2"]`,
		`[data-testid="turn 3"]`,
		`.one.two.three`,
		``,
	}
	for i, el := range els {
		got, err := elementSelector(ctx, el)
		if err != nil {
			t.Fatal(err)
		}
		if got != want[i] {
			t.Errorf("element %d: selector %q, want %q", i, got, want[i])
			continue
		}
		if got == "" {
			continue
		}
		back, err := doc.Query(ctx, got)
		if err != nil || back == nil {
			t.Errorf("selector %q does not find its element: %v", got, err)
		}
	}
}

func TestProbeTimestamp(t *testing.T) {
	doc := htmltree.MustParse(`<html><body>
<div id="a"><time datetime="2024-03-01T10:00:00Z">ten</time></div>
<div id="b"><span class="meta" title="Jan 2, 2024, 3:04 PM">yesterday</span></div>
<div id="c"><span class="timestamp">2024-05-05</span></div>
<div id="d"><time>soon</time></div>
</body></html>`)
	ctx := context.Background()
	tests := []struct {
		sel   string
		want  time.Time
		found bool
	}{
		{"#a", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"#b", time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC), true},
		{"#c", time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), true},
		{"#d", time.Time{}, false},
	}
	for _, tt := range tests {
		el, _ := doc.Query(ctx, tt.sel)
		got, found := probeTimestamp(ctx, el)
		if found != tt.found || !got.Equal(tt.want) {
			t.Errorf("%s: got %v/%v, want %v/%v", tt.sel, got, found, tt.want, tt.found)
		}
	}
}

func TestFilter(t *testing.T) {
	recs := []Record{{Text: "How do I reverse a list?"}, {Text: "What about MAPS"}, {Text: "maps again"}}
	tests := []struct {
		search string
		limit  int
		want   []string
	}{
		{"", 0, []string{"How do I reverse a list?", "What about MAPS", "maps again"}},
		{"maps", 0, []string{"What about MAPS", "maps again"}},
		{"  Maps ", 1, []string{"What about MAPS"}},
		{"", 2, []string{"How do I reverse a list?", "What about MAPS"}},
		{"nothing", 0, nil},
	}
	for _, tt := range tests {
		got := Filter(recs, tt.search, tt.limit)
		var texts []string
		for _, r := range got {
			texts = append(texts, r.Text)
		}
		if !slices.Equal(texts, tt.want) {
			t.Errorf("Filter(%q, %d) = %q, want %q", tt.search, tt.limit, texts, tt.want)
		}
	}
}
