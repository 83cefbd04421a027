package indexer

import (
	"context"
	"strings"

	"github.com/hazyhaar/looma/dom"
)

// elementSelector builds a selector that can find el again: its id, a
// message-id or test-id attribute, or up to three of its classes. Empty
// when none of those exist.
func elementSelector(ctx context.Context, el dom.Element) (string, error) {
	id, ok, err := el.Attr(ctx, "id")
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return "#" + dom.EscapeIdent(id), nil
	}
	for _, name := range []string{"data-message-id", "data-testid"} {
		v, ok, err := el.Attr(ctx, name)
		if err != nil {
			return "", err
		}
		if ok && v != "" {
			return "[" + name + "=" + dom.QuoteAttr(v) + "]", nil
		}
	}
	class, _, err := el.Attr(ctx, "class")
	if err != nil {
		return "", err
	}
	classes := strings.Fields(class)
	if len(classes) > 3 {
		classes = classes[:3]
	}
	if len(classes) == 0 {
		return "", nil
	}
	for i, c := range classes {
		classes[i] = dom.EscapeIdent(c)
	}
	return "." + strings.Join(classes, "."), nil
}
