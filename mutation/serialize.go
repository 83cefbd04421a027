package mutation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarshalBatch serialises a Batch to JSON.
func MarshalBatch(b *Batch) ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBatch deserialises a Batch from JSON.
func UnmarshalBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Signal is an out-of-band message carried in the same payload as records,
// such as a navigation notice from the page script. Signal ops start with "__".
type Signal struct {
	Op    string
	Value string
}

// DecodePayload splits a JSON array posted by the page observer script into
// tree change records and signals. Entries that fail to decode are skipped;
// the count of skipped entries is returned alongside.
func DecodePayload(payload []byte) (records []Record, signals []Signal, skipped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, nil, 0, fmt.Errorf("mutation: decode payload: %w", err)
	}
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal(item, &rec); err != nil || rec.Op == "" {
			skipped++
			continue
		}
		if strings.HasPrefix(string(rec.Op), "__") {
			signals = append(signals, Signal{Op: string(rec.Op), Value: rec.Value})
			continue
		}
		if !rec.Op.valid() {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, signals, skipped, nil
}

func (o Op) valid() bool {
	switch o {
	case OpInsert, OpRemove, OpText, OpAttr, OpAttrDel, OpDocReset, OpNavigate:
		return true
	}
	return false
}
