package schema

import "github.com/cuemby/restpose/pkg/slotcodec"

// SlotOf reports the value slot a field configuration writes to, if any,
// and the encoding format a reader should use to decode it. Only date and
// timestamp fields carry a slot (per jsonxapian/schema.h's DateFieldConfig/
// TimestampFieldConfig); every other field type indexes through postings
// only and has nothing for a facet-count spy (§4.7) to bind to. Both report
// Single, matching Schema.Process's per-document encoding choice for the
// common one-value-per-field case; a document that repeats a date/timestamp
// field falls back to Process's multi-value slot format, which a facet spy
// bound to Single would misdecode — a known simplification, since ranking
// by slot value only exercises the common single-value path in this spec.
func SlotOf(cfg FieldConfig) (slot uint32, format slotcodec.Format, ok bool) {
	switch c := cfg.(type) {
	case *DateConfig:
		return c.Slot, slotcodec.Single, true
	case *TimestampConfig:
		return c.Slot, slotcodec.Single, true
	default:
		return 0, slotcodec.Single, false
	}
}
