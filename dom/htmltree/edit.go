package htmltree

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/mutation"
)

// Tx is an edit session. Every change made through one Tx is delivered to
// subscribers as a single batch when Update returns.
type Tx struct {
	d       *Document
	records []mutation.Record
}

// Update runs fn with the document locked for writing. Changes applied
// before fn returns an error are kept and still published.
func (d *Document) Update(fn func(*Tx) error) error {
	d.mu.Lock()
	tx := &Tx{d: d}
	err := fn(tx)
	var batch *mutation.Batch
	if len(tx.records) > 0 {
		d.seq++
		batch = &mutation.Batch{
			ID:        d.newID(),
			PageURL:   d.url,
			Seq:       d.seq,
			Records:   tx.records,
			Timestamp: d.now().UnixMilli(),
		}
	}
	d.mu.Unlock()

	if batch != nil {
		d.publish(*batch)
	}
	return err
}

func (tx *Tx) add(rec mutation.Record) {
	tx.records = append(tx.records, rec)
	tx.d.version++
}

func (tx *Tx) first(selector string) (*html.Node, error) {
	g, err := dom.Compile(selector)
	if err != nil {
		return nil, err
	}
	n := cascadia.Query(tx.d.root, g)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	return n, nil
}

// Append parses fragment in the context of the first element matching
// selector and appends the resulting nodes to it.
func (tx *Tx) Append(selector, fragment string) error {
	target, err := tx.first(selector)
	if err != nil {
		return err
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), target)
	if err != nil {
		return fmt.Errorf("htmltree: parse fragment: %w", err)
	}
	for _, n := range nodes {
		target.AppendChild(n)
		rec := mutation.Record{Op: mutation.OpInsert, XPath: xpathOf(n)}
		switch n.Type {
		case html.ElementNode:
			rec.NodeType, rec.Tag, rec.HTML = 1, n.Data, renderNode(n)
		case html.TextNode:
			rec.NodeType, rec.Value, rec.HTML = 3, n.Data, renderNode(target)
		default:
			continue
		}
		tx.add(rec)
	}
	return nil
}

// SetAttr sets an attribute on the first element matching selector.
func (tx *Tx) SetAttr(selector, name, value string) error {
	target, err := tx.first(selector)
	if err != nil {
		return err
	}
	old, _ := attr(target, name)
	replaced := false
	for i := range target.Attr {
		if target.Attr[i].Namespace == "" && target.Attr[i].Key == name {
			target.Attr[i].Val = value
			replaced = true
			break
		}
	}
	if !replaced {
		target.Attr = append(target.Attr, html.Attribute{Key: name, Val: value})
	}
	tx.add(mutation.Record{
		Op: mutation.OpAttr, XPath: xpathOf(target), NodeType: 1, Tag: target.Data,
		Name: name, Value: value, OldValue: old, HTML: renderNode(target),
	})
	return nil
}

// RemoveAttr deletes an attribute from the first element matching selector.
func (tx *Tx) RemoveAttr(selector, name string) error {
	target, err := tx.first(selector)
	if err != nil {
		return err
	}
	old, ok := attr(target, name)
	if !ok {
		return nil
	}
	kept := target.Attr[:0]
	for _, a := range target.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		kept = append(kept, a)
	}
	target.Attr = kept
	tx.add(mutation.Record{
		Op: mutation.OpAttrDel, XPath: xpathOf(target), NodeType: 1, Tag: target.Data,
		Name: name, OldValue: old, HTML: renderNode(target),
	})
	return nil
}

// SetText replaces the children of the first element matching selector
// with a single text node.
func (tx *Tx) SetText(selector, text string) error {
	target, err := tx.first(selector)
	if err != nil {
		return err
	}
	old := textOf(target, tx.d.render())
	for c := target.FirstChild; c != nil; {
		next := c.NextSibling
		target.RemoveChild(c)
		c = next
	}
	target.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	tx.text(target, text, old)
	return nil
}

// AppendText extends the last text child of the first element matching
// selector, the way a streamed reply grows.
func (tx *Tx) AppendText(selector, text string) error {
	target, err := tx.first(selector)
	if err != nil {
		return err
	}
	last := target.LastChild
	if last == nil || last.Type != html.TextNode {
		last = &html.Node{Type: html.TextNode}
		target.AppendChild(last)
	}
	old := last.Data
	last.Data += text
	tx.text(target, last.Data, old)
	return nil
}

func (tx *Tx) text(parent *html.Node, value, old string) {
	tx.add(mutation.Record{
		Op: mutation.OpText, XPath: xpathOf(parent) + "/text()", NodeType: 3,
		Value: value, OldValue: old, HTML: renderNode(parent),
	})
}

// Remove detaches every element matching selector.
func (tx *Tx) Remove(selector string) error {
	g, err := dom.Compile(selector)
	if err != nil {
		return err
	}
	nodes := cascadia.QueryAll(tx.d.root, g)
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	for _, n := range nodes {
		if n.Parent == nil {
			continue // inside an already removed subtree
		}
		rec := mutation.Record{
			Op: mutation.OpRemove, XPath: xpathOf(n), NodeType: 1, Tag: n.Data,
			HTML: renderNode(n),
		}
		n.Parent.RemoveChild(n)
		tx.add(rec)
	}
	return nil
}

// Replace swaps the whole document for a freshly parsed one. Existing
// element handles become detached.
func (tx *Tx) Replace(r io.Reader) error {
	root, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("htmltree: parse: %w", err)
	}
	tx.d.root = root
	tx.add(mutation.Record{Op: mutation.OpDocReset})
	return nil
}

// Append is a single-edit Update.
func (d *Document) Append(selector, fragment string) error {
	return d.Update(func(tx *Tx) error { return tx.Append(selector, fragment) })
}

// SetAttr is a single-edit Update.
func (d *Document) SetAttr(selector, name, value string) error {
	return d.Update(func(tx *Tx) error { return tx.SetAttr(selector, name, value) })
}

// RemoveAttr is a single-edit Update.
func (d *Document) RemoveAttr(selector, name string) error {
	return d.Update(func(tx *Tx) error { return tx.RemoveAttr(selector, name) })
}

// SetText is a single-edit Update.
func (d *Document) SetText(selector, text string) error {
	return d.Update(func(tx *Tx) error { return tx.SetText(selector, text) })
}

// AppendText is a single-edit Update.
func (d *Document) AppendText(selector, text string) error {
	return d.Update(func(tx *Tx) error { return tx.AppendText(selector, text) })
}

// Remove is a single-edit Update.
func (d *Document) Remove(selector string) error {
	return d.Update(func(tx *Tx) error { return tx.Remove(selector) })
}

// Replace is a single-edit Update.
func (d *Document) Replace(r io.Reader) error {
	return d.Update(func(tx *Tx) error { return tx.Replace(r) })
}

// ReplaceString is Replace over a string.
func (d *Document) ReplaceString(markup string) error {
	return d.Replace(strings.NewReader(markup))
}
