package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/looma/palette"
)

const chatPage = `<!DOCTYPE html>
<html><head><style>
body { background: #212121; color: #ececec; }
nav { background: #171717; }
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

// run executes the command tree in an empty working directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writePage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.html")
	if err := os.WriteFile(path, []byte(chatPage), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolve(t *testing.T) {
	cases := []struct {
		arg       string
		name      string
		supported bool
	}{
		{"chatgpt.com", "chatgpt", true},
		{"https://gemini.google.com/app/123", "gemini", true},
		{"example.org", "unknown", false},
	}
	for _, c := range cases {
		out, err := run(t, "resolve", c.arg)
		if err != nil {
			t.Fatalf("resolve %s: %v", c.arg, err)
		}
		var got struct {
			Name      string `json:"name"`
			Supported bool   `json:"supported"`
		}
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("resolve %s: %v\n%s", c.arg, err, out)
		}
		if got.Name != c.name || got.Supported != c.supported {
			t.Errorf("resolve %s = %+v, want %s/%v", c.arg, got, c.name, c.supported)
		}
	}
}

func TestResolve_BadURL(t *testing.T) {
	if _, err := run(t, "resolve", "https://"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestIndex(t *testing.T) {
	path := writePage(t)
	out, err := run(t, "index", path, "--host", "chatgpt.com")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Platform string `json:"platform"`
		Total    int    `json:"total"`
		Queries  []struct {
			Text  string `json:"text"`
			Index int    `json:"index"`
		} `json:"queries"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if got.Platform != "chatgpt" || got.Total != 2 {
		t.Fatalf("platform=%s total=%d", got.Platform, got.Total)
	}
	texts := []string{got.Queries[0].Text, got.Queries[1].Text}
	if diff := cmp.Diff([]string{"How do I reverse a list in Go?", "What about maps?"}, texts); diff != "" {
		t.Errorf("queries (-want +got):\n%s", diff)
	}
}

func TestIndex_Search(t *testing.T) {
	path := writePage(t)
	out, err := run(t, "index", path, "--host", "chatgpt.com", "--search", "MAPS")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Total   int               `json:"total"`
		Queries []json.RawMessage `json:"queries"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Total != 2 || len(got.Queries) != 1 {
		t.Errorf("total=%d matched=%d, want 2/1", got.Total, len(got.Queries))
	}
}

func TestIndex_NoSource(t *testing.T) {
	_, err := run(t, "index")
	if err == nil || !strings.Contains(err.Error(), "--file or --url") {
		t.Errorf("err = %v", err)
	}
	if _, err := run(t, "index", "--file", "a.html", "--url", "https://chatgpt.com"); err == nil {
		t.Error("expected error for both --file and --url")
	}
}

func TestPalette(t *testing.T) {
	path := writePage(t)
	out, err := run(t, "palette", path, "--host", "chatgpt.com", "--no-swatch")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Platform string `json:"platform"`
		Palette  struct {
			Surface string `json:"surface"`
		} `json:"palette"`
		Dark bool `json:"dark"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if got.Platform != "chatgpt" || got.Palette.Surface == "" || !got.Dark {
		t.Errorf("palette = %+v", got)
	}
}

func TestSwatches(t *testing.T) {
	s := swatches(palette.Fallback)
	for _, slot := range []string{"primary", "secondary", "accent", "surface", "border"} {
		if !strings.Contains(s, slot) {
			t.Errorf("swatches missing %s: %q", slot, s)
		}
	}
}

func TestHostURL(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"claude.ai":            "https://claude.ai/",
		"https://x.com/i/grok": "https://x.com/i/grok",
	}
	for in, want := range cases {
		if got := hostURL(in); got != want {
			t.Errorf("hostURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBadLogLevel(t *testing.T) {
	if _, err := run(t, "--log-level", "loud", "resolve", "chatgpt.com"); err == nil {
		t.Error("expected error for unknown log level")
	}
}
