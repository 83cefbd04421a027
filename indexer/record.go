package indexer

import (
	"time"

	"github.com/hazyhaar/looma/dom"
)

// Record is one indexed user query.
type Record struct {
	ID              string   `json:"id"` // query_<index>_<hash>
	Text            string   `json:"text"`
	TruncatedText   string   `json:"truncated_text"`
	Timestamp       int64    `json:"timestamp"` // epoch milliseconds
	TimestampFound  bool     `json:"timestamp_found"`
	Index           int      `json:"index"`
	Position        dom.Rect `json:"position"`
	ElementSelector string   `json:"element_selector,omitempty"`

	// Ref is the element the record was extracted from. It is not owned by
	// the record and goes stale when the tree changes; use Engine.Locate.
	Ref dom.Element `json:"-"`
}

// Reason says why an update was emitted.
type Reason string

const (
	ReasonInitial  Reason = "initial"
	ReasonMutation Reason = "mutation"
	ReasonBackstop Reason = "backstop"
	ReasonRefresh  Reason = "refresh"
)

// Update is the notification handed to Config.Notify after a scan that
// changed the index, and after every Refresh.
type Update struct {
	ID        string   `json:"id"`
	Platform  string   `json:"platform"`
	Reason    Reason   `json:"reason"`
	Queries   []Record `json:"queries"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
}

// State is the engine lifecycle stage.
type State int32

const (
	StateUninitialized State = iota
	StateScanning
	StateObserving
	StateRescanning
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateScanning:
		return "scanning"
	case StateObserving:
		return "observing"
	case StateRescanning:
		return "rescanning"
	case StateDestroyed:
		return "destroyed"
	}
	return "invalid"
}

// MarshalText renders the state by name in JSON output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Stats is a point-in-time summary of engine activity.
type Stats struct {
	Platform         string        `json:"platform"`
	State            State         `json:"state"`
	Queries          int           `json:"queries"`
	Scans            uint64        `json:"scans"`
	Notifications    uint64        `json:"notifications"`
	Skipped          int           `json:"skipped"` // candidates dropped by the last scan
	LastScan         time.Time     `json:"last_scan"`
	LastScanDuration time.Duration `json:"last_scan_duration"`
}
