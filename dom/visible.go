package dom

import (
	"context"
	"strconv"
	"strings"
)

// IsVisible reports whether an element is rendered: a non-empty box,
// display not none, visibility not hidden and opacity not zero.
func IsVisible(ctx context.Context, el Element) (bool, error) {
	r, err := el.Rect(ctx)
	if err != nil {
		return false, err
	}
	if r.Empty() {
		return false, nil
	}
	display, err := el.Style(ctx, "display")
	if err != nil {
		return false, err
	}
	if display == "none" {
		return false, nil
	}
	visibility, err := el.Style(ctx, "visibility")
	if err != nil {
		return false, err
	}
	if visibility == "hidden" {
		return false, nil
	}
	opacity, err := el.Style(ctx, "opacity")
	if err != nil {
		return false, err
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(opacity), 64); err == nil && v == 0 {
		return false, nil
	}
	return true, nil
}
