package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/locator"
)

// Locate finds the element of the record with the given ID in the current
// tree. The cached reference is used while still attached; otherwise the
// element selector is tried with an exact text check, then every
// user-message locator with an exact match and finally a partial one.
func (e *Engine) Locate(ctx context.Context, id string) (dom.Element, error) {
	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return nil, ErrEngineDestroyed
	}
	doc, p := e.doc, e.profile
	var (
		rec   Record
		found bool
	)
	for _, r := range e.records {
		if r.ID == id {
			rec, found = r, true
			break
		}
	}
	e.mu.Unlock()

	if doc == nil {
		return nil, ErrNotInitialized
	}
	if !found {
		return nil, fmt.Errorf("indexer: locate %s: %w", id, ErrQueryNotFound)
	}
	el, err := relocate(ctx, doc, p, rec)
	if err != nil {
		return nil, fmt.Errorf("indexer: locate %s: %w", id, err)
	}
	return el, nil
}

func relocate(ctx context.Context, doc dom.Document, p locator.Profile, rec Record) (dom.Element, error) {
	if rec.Ref != nil {
		if ok, err := rec.Ref.Attached(ctx); err == nil && ok {
			return rec.Ref, nil
		}
	}

	if rec.ElementSelector != "" {
		if els, err := doc.QueryAll(ctx, rec.ElementSelector); err == nil {
			for _, el := range els {
				if text, err := messageText(ctx, p, el); err == nil && text == rec.Text {
					return el, nil
				}
			}
		}
	}

	var partial dom.Element
	for _, sel := range p.UserMessageLocators() {
		els, err := doc.QueryAll(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for _, el := range els {
			text, err := messageText(ctx, p, el)
			if err != nil || text == "" {
				continue
			}
			if text == rec.Text {
				return el, nil
			}
			if partial == nil && strings.Contains(text, rec.Text) {
				partial = el
			}
		}
	}
	if partial != nil {
		return partial, nil
	}
	return nil, ErrElementNotFound
}
