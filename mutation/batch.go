// Package mutation defines the change notifications a document emits to its
// subscribers. Both the in-memory tree and the live browser page produce
// these batches; the indexer only reads them to decide whether a rescan is
// worth scheduling.
package mutation

// Op is the type of tree change observed.
type Op string

const (
	OpInsert   Op = "insert"    // element inserted (HTML carries its outerHTML)
	OpRemove   Op = "remove"    // element removed
	OpText     Op = "text"      // character data changed (HTML carries the parent element)
	OpAttr     Op = "attr"      // attribute set (HTML carries the target element)
	OpAttrDel  Op = "attr_del"  // attribute removed
	OpDocReset Op = "doc_reset" // entire document replaced
	OpNavigate Op = "navigate"  // page URL changed (Value carries the new URL)
)

// Record is a single tree change.
type Record struct {
	Op        Op     `json:"op"`
	XPath     string `json:"xpath"`
	NodeType  int    `json:"node_type,omitempty"` // 1=element, 3=text
	Tag       string `json:"tag,omitempty"`
	Name      string `json:"name,omitempty"`      // attribute name for attr/attr_del
	Value     string `json:"value,omitempty"`     // new value
	OldValue  string `json:"old_value,omitempty"` // previous value
	HTML      string `json:"html,omitempty"`      // serialised fragment of the affected element
	Truncated bool   `json:"truncated,omitempty"` // HTML was cut to the page's size limit
}

// Batch is the unit delivered to subscribers: every change observed in one
// synchronous edit (in-memory tree) or one MutationObserver callback (page).
type Batch struct {
	ID        string   `json:"id"` // UUIDv7
	PageURL   string   `json:"page_url"`
	Seq       uint64   `json:"seq"` // monotonically increasing per document
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
}

// Has reports whether the batch contains at least one record of the given op.
func (b Batch) Has(op Op) bool {
	for _, r := range b.Records {
		if r.Op == op {
			return true
		}
	}
	return false
}
