// Package docdata implements the per-document side-table of raw JSON
// fragments keyed by stored-field name (spec §3, §6.5): an insertion-ordered
// map serialized as a flat run of (vint-length, field-name, vint-length,
// json-fragment) records.
package docdata

import (
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/varint"
)

// entry is one stored field's raw JSON fragment, kept in insertion order.
type entry struct {
	field string
	value string
}

// Data is the mutable side-table built up while processing one document.
type Data struct {
	entries []entry
	index   map[string]int // field -> position in entries
}

// New returns an empty Data.
func New() *Data {
	return &Data{index: make(map[string]int)}
}

// Set stores (or replaces) the raw JSON fragment for field. Replacing an
// existing field keeps its original position.
func (d *Data) Set(field, jsonFragment string) {
	if pos, ok := d.index[field]; ok {
		d.entries[pos].value = jsonFragment
		return
	}
	d.index[field] = len(d.entries)
	d.entries = append(d.entries, entry{field: field, value: jsonFragment})
}

// Get returns the raw JSON fragment stored for field, if any.
func (d *Data) Get(field string) (string, bool) {
	pos, ok := d.index[field]
	if !ok {
		return "", false
	}
	return d.entries[pos].value, true
}

// Fields returns the stored field names in insertion order.
func (d *Data) Fields() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.field
	}
	return out
}

// Each calls fn for every (field, value) pair in insertion order.
func (d *Data) Each(fn func(field, value string)) {
	for _, e := range d.entries {
		fn(e.field, e.value)
	}
}

// Len reports the number of stored fields.
func (d *Data) Len() int { return len(d.entries) }

// Serialize produces the wire-format blob described in spec §6.5.
func (d *Data) Serialize() []byte {
	var out []byte
	for _, e := range d.entries {
		out = append(out, varint.EncodeString(e.field)...)
		out = append(out, varint.EncodeString(e.value)...)
	}
	return out
}

// Deserialize parses a blob produced by Serialize. It requires the stream
// to end exactly at the declared boundary; trailing or truncated bytes are
// a KindUnserialization error.
func Deserialize(blob []byte) (*Data, error) {
	d := New()
	pos := 0
	for pos < len(blob) {
		field, consumed, err := varint.DecodeString(blob[pos:])
		if err != nil {
			return nil, rperrors.Wrap(rperrors.KindUnserialization, "docdata: reading field name", err)
		}
		pos += consumed

		value, consumed, err := varint.DecodeString(blob[pos:])
		if err != nil {
			return nil, rperrors.Wrap(rperrors.KindUnserialization, "docdata: reading field value", err)
		}
		pos += consumed

		d.Set(field, value)
	}
	if pos != len(blob) {
		return nil, rperrors.New(rperrors.KindUnserialization, "docdata: stream did not end at declared boundary")
	}
	return d, nil
}
