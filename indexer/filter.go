package indexer

import "strings"

// Filter keeps records whose text contains search, case-insensitively,
// then truncates to limit when limit > 0. An empty search keeps all.
// The input slice is not modified.
func Filter(records []Record, search string, limit int) []Record {
	out := records
	if q := strings.ToLower(strings.TrimSpace(search)); q != "" {
		out = make([]Record, 0, len(records))
		for _, r := range records {
			if strings.Contains(strings.ToLower(r.Text), q) {
				out = append(out, r)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
