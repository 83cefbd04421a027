package mutation

import (
	"testing"
)

func TestBatchMarshalRoundtrip(t *testing.T) {
	b := &Batch{
		ID:      "01234567-89ab-cdef-0123-456789abcdef",
		PageURL: "https://chatgpt.com/c/1",
		Seq:     42,
		Records: []Record{
			{Op: OpInsert, XPath: "/html/body/div", NodeType: 1, Tag: "div", HTML: "<div>hello</div>"},
			{Op: OpAttr, XPath: "/html/body/div", Name: "class", Value: "new", OldValue: "old"},
		},
		Timestamp: 1708700000000,
	}

	data, err := MarshalBatch(b)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalBatch(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != b.ID || got.Seq != b.Seq || len(got.Records) != 2 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Records[0].HTML != "<div>hello</div>" {
		t.Errorf("HTML: got %q", got.Records[0].HTML)
	}
}

func TestBatchHas(t *testing.T) {
	b := Batch{Records: []Record{{Op: OpInsert}, {Op: OpText}}}
	if !b.Has(OpText) {
		t.Error("Has(text) = false")
	}
	if b.Has(OpDocReset) {
		t.Error("Has(doc_reset) = true")
	}
}

func TestDecodePayload(t *testing.T) {
	payload := []byte(`[
		{"op":"insert","xpath":"/html/body/div[2]","tag":"div","html":"<div data-message-author-role=\"user\">hi</div>"},
		{"op":"__navigate","value":"https://chatgpt.com/c/2"},
		{"op":"bogus"},
		{"nothing":true},
		{"op":"text","xpath":"/html/body/p/text()","value":"x"}
	]`)

	recs, sigs, skipped, err := DecodePayload(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	if recs[0].Op != OpInsert || recs[1].Op != OpText {
		t.Errorf("ops: got %s, %s", recs[0].Op, recs[1].Op)
	}
	if len(sigs) != 1 || sigs[0].Op != "__navigate" || sigs[0].Value != "https://chatgpt.com/c/2" {
		t.Errorf("signals: got %+v", sigs)
	}
	if skipped != 2 {
		t.Errorf("skipped: got %d, want 2", skipped)
	}
}

func TestDecodePayload_NotArray(t *testing.T) {
	if _, _, _, err := DecodePayload([]byte(`{"op":"insert"}`)); err == nil {
		t.Fatal("expected error for non-array payload")
	}
}

func TestCompress_ConsecutiveAttr(t *testing.T) {
	records := []Record{
		{Op: OpAttr, XPath: "/div", Name: "class", Value: "a", OldValue: "orig"},
		{Op: OpAttr, XPath: "/div", Name: "class", Value: "b", OldValue: "a"},
		{Op: OpAttr, XPath: "/div", Name: "class", Value: "c", OldValue: "b"},
	}

	got := Compress(records)
	if len(got) != 1 {
		t.Fatalf("Compress: got %d records, want 1", len(got))
	}
	if got[0].Value != "c" || got[0].OldValue != "orig" {
		t.Errorf("got value=%q old=%q", got[0].Value, got[0].OldValue)
	}
}

func TestCompress_AttrDifferentNames(t *testing.T) {
	records := []Record{
		{Op: OpAttr, XPath: "/div", Name: "class", Value: "a"},
		{Op: OpAttr, XPath: "/div", Name: "data-testid", Value: "b"},
	}
	if got := Compress(records); len(got) != 2 {
		t.Fatalf("Compress: got %d records, want 2", len(got))
	}
}

func TestCompress_MixedOps(t *testing.T) {
	records := []Record{
		{Op: OpText, XPath: "/p/text()", Value: "x", OldValue: "orig"},
		{Op: OpText, XPath: "/p/text()", Value: "xy"},
		{Op: OpInsert, XPath: "/div/span"},
		{Op: OpInsert, XPath: "/div/span"},
		{Op: OpRemove, XPath: "/div/old"},
	}

	got := Compress(records)
	if len(got) != 4 {
		t.Fatalf("Compress: got %d records, want 4", len(got))
	}
	if got[0].Value != "xy" || got[0].OldValue != "orig" {
		t.Errorf("Record[0]: got %+v", got[0])
	}
	if got[3].Op != OpRemove {
		t.Errorf("Record[3]: got op=%s, want remove", got[3].Op)
	}
}

func TestCompress_Empty(t *testing.T) {
	if got := Compress(nil); got != nil {
		t.Errorf("Compress(nil): got %v, want nil", got)
	}
}
