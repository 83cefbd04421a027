package mutation

// Compress collapses runs of redundant records:
//   - consecutive attr on the same (xpath, name) keep the last value and the first old value
//   - consecutive text on the same xpath keep the last value and the first old value
//   - insert, remove, attr_del and doc_reset are never merged
//
// Streaming responses rewrite the same text node hundreds of times per
// second; compression keeps the page batches small.
func Compress(records []Record) []Record {
	if len(records) <= 1 {
		return records
	}

	result := make([]Record, 0, len(records))
	for i := 0; i < len(records); i++ {
		rec := records[i]
		switch rec.Op {
		case OpAttr, OpText:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) && sameTarget(rec, records[j]) {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1
		default:
			result = append(result, rec)
		}
	}
	return result
}

func sameTarget(a, b Record) bool {
	if a.Op != b.Op || a.XPath != b.XPath {
		return false
	}
	return a.Op != OpAttr || a.Name == b.Name
}
