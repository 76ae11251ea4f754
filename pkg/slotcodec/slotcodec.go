// Package slotcodec implements the three value-slot wire formats a schema
// may choose per slot: a single opaque value, a vint-length-prefixed
// multi-value sequence, and a fixed-6-byte geo-encoded multi-value
// sequence. See spec §3 and §4.3.
package slotcodec

import (
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/varint"
)

// Format identifies one of the three slot encodings.
type Format int

const (
	// Single holds exactly one byte string.
	Single Format = iota
	// VintMulti holds zero or more byte strings, each vint-length prefixed.
	VintMulti
	// GeoMulti holds zero or more fixed 6-byte entries.
	GeoMulti
)

// geoEntryLen is the fixed width of a GeoMulti entry.
const geoEntryLen = 6

// EncodeSingle returns the Single-format encoding of value (the value
// verbatim; the format carries no framing of its own).
func EncodeSingle(value []byte) []byte {
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

// EncodeVintMulti returns the VintMulti-format encoding of values.
func EncodeVintMulti(values [][]byte) []byte {
	var out []byte
	for _, v := range values {
		out = varint.Encode(out, uint64(len(v)))
		out = append(out, v...)
	}
	return out
}

// EncodeLatLong packs a latitude/longitude pair into the fixed 6-byte
// GeoMulti entry format: 3 bytes each, big-endian, of
// floor((coord+180)*0xffffff/360), clamped to [0, 0xffffff], so both halves
// sort byte-lexicographically in coordinate order.
func EncodeLatLong(lat, long float64) [geoEntryLen]byte {
	var out [geoEntryLen]byte
	packCoord(out[0:3], lat)
	packCoord(out[3:6], long)
	return out
}

// DecodeLatLong unpacks a GeoMulti entry back into a latitude/longitude pair.
func DecodeLatLong(entry [geoEntryLen]byte) (lat, long float64) {
	return unpackCoord(entry[0:3]), unpackCoord(entry[3:6])
}

func packCoord(dst []byte, v float64) {
	const scale = 0xffffff
	normalized := (v + 180.0) / 360.0
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}
	n := uint32(normalized * scale)
	dst[0] = byte(n >> 16)
	dst[1] = byte(n >> 8)
	dst[2] = byte(n)
}

func unpackCoord(src []byte) float64 {
	const scale = 0xffffff
	n := uint32(src[0])<<16 | uint32(src[1])<<8 | uint32(src[2])
	return float64(n)/scale*360.0 - 180.0
}

// EncodeGeoMulti returns the GeoMulti-format encoding of a sequence of
// packed lat/long entries.
func EncodeGeoMulti(entries [][geoEntryLen]byte) []byte {
	out := make([]byte, 0, len(entries)*geoEntryLen)
	for _, e := range entries {
		out = append(out, e[:]...)
	}
	return out
}

// Decoder yields successive entries from a slot's raw bytes according to
// its bound format.
type Decoder struct {
	format Format
	buf    []byte
	pos    int
}

// New binds a decoder to a format; call Load to attach a document's raw
// slot bytes.
func New(format Format) *Decoder {
	return &Decoder{format: format}
}

// Load attaches the raw bytes read from a document's slot entry.
func (d *Decoder) Load(raw []byte) {
	d.buf = raw
	d.pos = 0
}

// Next yields the next entry, or ok=false when exhausted.
func (d *Decoder) Next() (entry []byte, ok bool, err error) {
	switch d.format {
	case Single:
		if d.pos > 0 || len(d.buf) == 0 {
			return nil, false, nil
		}
		d.pos = len(d.buf)
		return d.buf, true, nil

	case VintMulti:
		if d.pos >= len(d.buf) {
			return nil, false, nil
		}
		n, consumed, err := varint.DecodeChecked(d.buf[d.pos:], len(d.buf)-d.pos)
		if err != nil {
			return nil, false, err
		}
		start := d.pos + consumed
		end := start + int(n)
		d.pos = end
		return d.buf[start:end], true, nil

	case GeoMulti:
		if d.pos >= len(d.buf) {
			return nil, false, nil
		}
		if len(d.buf)%geoEntryLen != 0 {
			return nil, false, rperrors.New(rperrors.KindUnserialization, "slotcodec: geo slot length not a multiple of 6")
		}
		start := d.pos
		end := start + geoEntryLen
		d.pos = end
		return d.buf[start:end], true, nil

	default:
		return nil, false, rperrors.New(rperrors.KindUnserialization, "slotcodec: unknown format")
	}
}

// ReadAll drains the decoder into a slice, for callers that don't need the
// streaming interface.
func ReadAll(format Format, raw []byte) ([][]byte, error) {
	d := New(format)
	d.Load(raw)
	var out [][]byte
	for {
		entry, ok, err := d.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, entry)
	}
}
