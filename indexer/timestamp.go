package indexer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hazyhaar/looma/dom"
)

// timestampLocators are probed in order inside a message element.
var timestampLocators = []string{
	"time",
	"[datetime]",
	".timestamp",
	".time",
	`[title*="PM"], [title*="AM"]`,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 at 3:04 PM",
	"Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006, 3:04 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
}

var errTimestampFormat = errors.New("indexer: unrecognised timestamp")

// ParseTimestamp accepts the date formats chat UIs put in datetime and
// title attributes. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errTimestampFormat
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errTimestampFormat
}

// probeTimestamp looks for a timestamp inside el. Each located element
// offers its datetime attribute, then its title, then its text; the first
// value that parses wins.
func probeTimestamp(ctx context.Context, el dom.Element) (time.Time, bool) {
	for _, sel := range timestampLocators {
		ts, err := el.Query(ctx, sel)
		if err != nil || ts == nil {
			continue
		}
		for _, value := range timestampValues(ctx, ts) {
			if t, err := ParseTimestamp(value); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func timestampValues(ctx context.Context, el dom.Element) []string {
	var out []string
	for _, name := range []string{"datetime", "title"} {
		if v, ok, err := el.Attr(ctx, name); err == nil && ok {
			out = append(out, v)
		}
	}
	if text, err := el.Text(ctx); err == nil {
		out = append(out, text)
	}
	return out
}
