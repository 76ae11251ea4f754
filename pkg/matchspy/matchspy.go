// Package matchspy implements spec §4.7's streaming match-spy accumulators,
// invoked by the backend once per retrieved document during an MSet walk.
// Grounded on the facet-counting behaviour spec.md describes; no example
// repo carries an equivalent streaming-aggregation type, so the shape here
// follows the spec's own field-by-field description directly.
package matchspy

import (
	"sort"

	"github.com/cuemby/restpose/pkg/slotcodec"
)

// Spy observes retrieved documents one at a time and produces a JSON-ready
// result once the walk completes.
type Spy interface {
	// Observe is called once per retrieved document, in weight-descending
	// (ranked) order, with the document's weight and the raw bytes stored
	// in the spy's bound slot (nil if the document has no value there).
	Observe(weight float64, rawSlotValue []byte)
	Result() map[string]interface{}
}

// countEntry is one (value, frequency) pair pending sort.
type countEntry struct {
	value string
	freq  int
}

// FacetCountSpy counts distinct slot values across the documents it's shown,
// stopping after DocLimit documents (0 means unlimited), and reports the top
// ResultLimit values by descending frequency, ties broken by byte-ordered
// value.
type FacetCountSpy struct {
	Slot        uint32
	Format      slotcodec.Format
	DocLimit    int
	ResultLimit int
	// Resolved is false when the spy's field name never mapped to a slot;
	// such a spy is still installed (so the response carries one info
	// object per requested spy) but never sees any documents.
	Resolved bool

	docsSeen   int
	valuesSeen int
	counts     map[string]int
}

// NewFacetCountSpy builds a facet-count spy bound to slot under format. Pass
// resolved=false for a field name that couldn't be mapped to a slot; the
// spy still participates in the response but counts nothing.
func NewFacetCountSpy(slot uint32, format slotcodec.Format, docLimit, resultLimit int, resolved bool) *FacetCountSpy {
	return &FacetCountSpy{
		Slot:        slot,
		Format:      format,
		DocLimit:    docLimit,
		ResultLimit: resultLimit,
		Resolved:    resolved,
		counts:      make(map[string]int),
	}
}

func (s *FacetCountSpy) Observe(_ float64, rawSlotValue []byte) {
	if !s.Resolved {
		return
	}
	if s.DocLimit > 0 && s.docsSeen >= s.DocLimit {
		return
	}
	s.docsSeen++
	if rawSlotValue == nil {
		return
	}
	entries, err := slotcodec.ReadAll(s.Format, rawSlotValue)
	if err != nil {
		return
	}
	for _, e := range entries {
		s.counts[string(e)]++
		s.valuesSeen++
	}
}

// Result renders {type, slot, docs_seen, values_seen, counts} per spec §4.7.
func (s *FacetCountSpy) Result() map[string]interface{} {
	entries := make([]countEntry, 0, len(s.counts))
	for v, f := range s.counts {
		entries = append(entries, countEntry{value: v, freq: f})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].freq != entries[j].freq {
			return entries[i].freq > entries[j].freq
		}
		return entries[i].value < entries[j].value
	})
	limit := s.ResultLimit
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	counts := make([][2]interface{}, limit)
	for i := 0; i < limit; i++ {
		counts[i] = [2]interface{}{entries[i].value, entries[i].freq}
	}
	return map[string]interface{}{
		"type":        "facetcount",
		"slot":        s.Slot,
		"docs_seen":   s.docsSeen,
		"values_seen": s.valuesSeen,
		"counts":      counts,
	}
}
