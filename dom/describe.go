package dom

import (
	"context"
	"fmt"
)

// Summary is a serialisable view of an element, for API responses.
type Summary struct {
	Tag      string `json:"tag"`
	Path     string `json:"path"`
	Rect     Rect   `json:"rect"`
	Attached bool   `json:"attached"`
}

// Describe summarises el.
func Describe(ctx context.Context, el Element) (Summary, error) {
	r, err := el.Rect(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("dom: describe rect: %w", err)
	}
	attached, err := el.Attached(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("dom: describe attached: %w", err)
	}
	return Summary{
		Tag:      el.Tag(),
		Path:     el.Path().String(),
		Rect:     r,
		Attached: attached,
	}, nil
}
