package indexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// MinTextLength is the shortest normalized text, in characters, that
	// becomes a record.
	MinTextLength = 3
	// TruncateLimit is the display length of Record.TruncatedText, not
	// counting the ellipsis.
	TruncateLimit = 60
)

// Normalize drops format characters (zero-width spaces, joiners, BOM),
// collapses whitespace runs to a single space and trims both ends.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to limit characters plus "...". The cut moves back to
// the last space when that space sits beyond 70% of the limit.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := []rune(s)[:limit]
	if i := lastSpace(cut); float64(i) > float64(limit)*0.7 {
		cut = cut[:i]
	}
	return string(cut) + "..."
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == ' ' {
			return i
		}
	}
	return -1
}

// QueryID derives the record identity from its normalized text and rank.
func QueryID(text string, index int) string {
	return "query_" + strconv.Itoa(index) + "_" + textHash(text)
}

// textHash is the 31-multiplier string hash over UTF-16 code units with
// 32-bit wraparound, rendered as base36 of its absolute value. IDs stay
// comparable with those produced by the browser extension.
func textHash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
