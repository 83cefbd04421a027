package indexer

import (
	"context"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/locator"
)

type scanResult struct {
	records []Record
	skipped int
	at      time.Time
	took    time.Duration
}

// commit replaces the index with a finished scan. Caller holds e.mu.
func (e *Engine) commit(res scanResult) {
	e.records = res.records
	e.stats.Scans++
	e.stats.Skipped = res.skipped
	e.stats.LastScan = res.at
	e.stats.LastScanDuration = res.took
}

// scan derives the full record sequence from doc. It only fails when the
// candidates cannot be listed or ctx is cancelled; a candidate that cannot
// be read is logged and skipped.
func (e *Engine) scan(ctx context.Context, doc dom.Document, p locator.Profile) (scanResult, error) {
	start := e.cfg.Now()
	candidates, err := candidates(ctx, doc, p)
	if err != nil {
		return scanResult{}, err
	}

	res := scanResult{records: make([]Record, 0, len(candidates)), at: start}
	for i, el := range candidates {
		if err := ctx.Err(); err != nil {
			return scanResult{}, err
		}
		// Rank counts every visible candidate, dropped ones included.
		rec, ok, err := extract(ctx, p, el, i, start)
		if err != nil {
			if ctx.Err() != nil {
				return scanResult{}, ctx.Err()
			}
			e.logger.Debug("indexer: skip candidate",
				"platform", p.Name, "element", el.Path().String(), "error", err)
			res.skipped++
			continue
		}
		if !ok {
			res.skipped++
			continue
		}
		res.records = append(res.records, rec)
	}
	res.took = e.cfg.Now().Sub(start)
	return res, nil
}

// candidates lists the visible user-message elements in document order.
// The fallback locator is used only when the primary one matches nothing.
func candidates(ctx context.Context, doc dom.Document, p locator.Profile) ([]dom.Element, error) {
	var found []dom.Element
	for _, sel := range p.UserMessageLocators() {
		els, err := doc.QueryAll(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", sel, err)
		}
		if len(els) > 0 {
			found = els
			break
		}
	}

	visible := make([]dom.Element, 0, len(found))
	for _, el := range found {
		ok, err := dom.IsVisible(ctx, el)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if ok {
			visible = append(visible, el)
		}
	}
	slices.SortStableFunc(visible, func(a, b dom.Element) int {
		return dom.Compare(a.Path(), b.Path())
	})
	return visible, nil
}

// extract builds the record for one candidate at the given rank. ok is
// false when the message text is too short to index.
func extract(ctx context.Context, p locator.Profile, el dom.Element, index int, now time.Time) (Record, bool, error) {
	text, err := messageText(ctx, p, el)
	if err != nil {
		return Record{}, false, err
	}
	if utf8.RuneCountInString(text) < MinTextLength {
		return Record{}, false, nil
	}
	rect, err := el.Rect(ctx)
	if err != nil {
		return Record{}, false, fmt.Errorf("rect: %w", err)
	}
	sel, err := elementSelector(ctx, el)
	if err != nil {
		return Record{}, false, fmt.Errorf("selector: %w", err)
	}
	ts, found := probeTimestamp(ctx, el)
	if !found {
		ts = now
	}
	return Record{
		ID:              QueryID(text, index),
		Text:            text,
		TruncatedText:   Truncate(text, TruncateLimit),
		Timestamp:       ts.UnixMilli(),
		TimestampFound:  found,
		Index:           index,
		Position:        rect,
		ElementSelector: sel,
		Ref:             el,
	}, true, nil
}

// messageText is the normalized text of a message's content element.
func messageText(ctx context.Context, p locator.Profile, el dom.Element) (string, error) {
	content, err := contentElement(ctx, p, el)
	if err != nil {
		return "", err
	}
	text, err := content.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("text: %w", err)
	}
	return Normalize(text), nil
}

// contentElement picks the primary content locator's first match inside
// el, then the fallback's, then el itself.
func contentElement(ctx context.Context, p locator.Profile, el dom.Element) (dom.Element, error) {
	for _, sel := range p.ContentLocators() {
		c, err := el.Query(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("content %q: %w", sel, err)
		}
		if c != nil {
			return c, nil
		}
	}
	return el, nil
}
