package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/looma/dom/htmltree"
)

func TestLocate(t *testing.T) {
	ctx := context.Background()
	doc := htmltree.MustParse(conversation)
	e, _ := newEngine(t, quiet)
	recs, err := e.Initialize(ctx, doc, chatgpt())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("attached reference", func(t *testing.T) {
		el, err := e.Locate(ctx, recs[1].ID)
		if err != nil {
			t.Fatal(err)
		}
		if el != recs[1].Ref {
			t.Errorf("Locate returned %v, want the cached reference", el)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := e.Locate(ctx, "query_9_zzz")
		if !errors.Is(err, ErrQueryNotFound) {
			t.Fatalf("err = %v, want ErrQueryNotFound", err)
		}
	})
}

func TestLocate_AfterReplace(t *testing.T) {
	ctx := context.Background()
	doc := htmltree.MustParse(conversation)
	e, _ := newEngine(t, quiet)
	recs, err := e.Initialize(ctx, doc, chatgpt())
	if err != nil {
		t.Fatal(err)
	}

	// Same markup, new nodes: every cached reference is now detached.
	if err := doc.ReplaceString(conversation); err != nil {
		t.Fatal(err)
	}
	if ok, _ := recs[0].Ref.Attached(ctx); ok {
		t.Fatal("old reference still attached after replace")
	}

	for _, r := range recs {
		el, err := e.Locate(ctx, r.ID)
		if err != nil {
			t.Fatalf("Locate(%s): %v", r.ID, err)
		}
		if ok, _ := el.Attached(ctx); !ok {
			t.Errorf("Locate(%s) returned a detached element", r.ID)
		}
		if text, _ := messageText(ctx, chatgpt(), el); text != r.Text {
			t.Errorf("Locate(%s) found %q, want %q", r.ID, text, r.Text)
		}
	}
}

func TestLocate_PartialMatch(t *testing.T) {
	ctx := context.Background()
	doc := htmltree.MustParse(conversation)
	e, _ := newEngine(t, quiet)
	recs, err := e.Initialize(ctx, doc, chatgpt())
	if err != nil {
		t.Fatal(err)
	}

	err = doc.ReplaceString(`<html><body><main>
<div data-message-author-role="user"><div class="whitespace-pre-wrap">Something else</div></div>
<div data-message-author-role="user"><div class="whitespace-pre-wrap">What about maps? And sets?</div></div>
</main></body></html>`)
	if err != nil {
		t.Fatal(err)
	}

	el, err := e.Locate(ctx, recs[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if text, _ := messageText(ctx, chatgpt(), el); text != "What about maps? And sets?" {
		t.Errorf("partial match found %q", text)
	}

	_, err = e.Locate(ctx, recs[0].ID)
	if !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("err = %v, want ErrElementNotFound", err)
	}
}

func TestLocate_NotInitialized(t *testing.T) {
	e, _ := newEngine(t, quiet)
	if _, err := e.Locate(context.Background(), "query_0_1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v", err)
	}
}
