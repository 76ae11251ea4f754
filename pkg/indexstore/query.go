package indexstore

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/restpose/pkg/matchspy"
	"github.com/cuemby/restpose/pkg/queryast"
	"github.com/cuemby/restpose/pkg/rperrors"
)

// evaluate walks a queryast.Node into the sorted set of idterms it matches.
// Every query here is boolean-weighted (per spec §4.6's "boolean-weight
// enquire"): there is no positional index, so TextQuery degrades to set
// algebra over the field's term postings rather than true phrase/near
// matching — phrase and near both fall back to the field's "or"
// behaviour. ParsedQuery is not evaluated at all: it fails with an
// InvalidValue error, since no free-text query parser is implemented.
// Both are noted in DESIGN.md.
func (s *Store) evaluate(tx *bolt.Tx, node queryast.Node) ([]string, error) {
	switch n := node.(type) {
	case queryast.MatchAll:
		return s.allIDTerms(tx), nil
	case queryast.MatchNothing:
		return nil, nil
	case queryast.Term:
		return s.termPostings(tx, n.Value), nil
	case queryast.Or:
		return s.evalUnion(tx, n.Children)
	case queryast.And:
		return s.evalIntersect(tx, n.Children)
	case queryast.Xor:
		return s.evalXor(tx, n.Children)
	case queryast.AndNot:
		left, err := s.evaluate(tx, n.Left)
		if err != nil {
			return nil, err
		}
		right, err := s.evalUnion(tx, n.Right)
		if err != nil {
			return nil, err
		}
		return setDifference(left, right), nil
	case queryast.AndMaybe:
		// Boolean-weighted: AndMaybe's right side only boosts score, and
		// with no ranking the result set is just the left side.
		return s.evaluate(tx, n.Left)
	case queryast.Filter:
		query, err := s.evaluate(tx, n.Query)
		if err != nil {
			return nil, err
		}
		secondary, err := s.evaluate(tx, n.Secondary)
		if err != nil {
			return nil, err
		}
		return setIntersect(query, secondary), nil
	case queryast.Scale:
		return s.evaluate(tx, n.Query)
	case queryast.TextQuery:
		terms := make([]queryast.Node, len(n.Terms))
		for i, t := range n.Terms {
			terms[i] = queryast.Term{Value: n.Prefix + t}
		}
		if n.Op == "and" {
			return s.evalIntersect(tx, terms)
		}
		return s.evalUnion(tx, terms)
	case queryast.ParsedQuery:
		return nil, rperrors.New(rperrors.KindInvalidValue, "free-text query parsing is not supported; use a text query with explicit terms")
	case queryast.ValueRange:
		return s.slotRange(tx, n.Slot, n.Low, n.High), nil
	case queryast.Exists:
		if n.AnyField {
			return s.slotExistsAnyField(tx), nil
		}
		return s.slotExists(tx, n.Slot), nil
	case queryast.Nonempty, queryast.Empty:
		// Never produced by schema's field-config Query methods (meta
		// fields express presence via ordinary Term queries instead); kept
		// in queryast for completeness but unsupported here.
		return nil, rperrors.New(rperrors.KindInvalidValue, "nonempty/empty queries are not supported by this backend")
	default:
		return nil, rperrors.Invalidf("unsupported query node %T", node)
	}
}

func (s *Store) evalUnion(tx *bolt.Tx, children []queryast.Node) ([]string, error) {
	var result []string
	for i, c := range children {
		set, err := s.evaluate(tx, c)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = set
			continue
		}
		result = setUnion(result, set)
	}
	return result, nil
}

func (s *Store) evalIntersect(tx *bolt.Tx, children []queryast.Node) ([]string, error) {
	var result []string
	for i, c := range children {
		set, err := s.evaluate(tx, c)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = set
			continue
		}
		result = setIntersect(result, set)
	}
	return result, nil
}

func (s *Store) evalXor(tx *bolt.Tx, children []queryast.Node) ([]string, error) {
	counts := map[string]int{}
	for _, c := range children {
		set, err := s.evaluate(tx, c)
		if err != nil {
			return nil, err
		}
		for _, id := range set {
			counts[id]++
		}
	}
	var out []string
	for id, n := range counts {
		if n%2 == 1 {
			out = append(out, id)
		}
	}
	return sortedCopy(out), nil
}

// MatchResult is one hit of an MSet enumeration: its idterm and stored
// field data, ready to be filtered down to the requested display fields.
type MatchResult struct {
	IDTerm string
	Data   []byte
}

// MSet walks query's matches in idterm order (boolean-weighted, so there is
// no score to rank by), feeding every matched document's value for each
// spy's bound slot into that spy, and returns the page [from, from+size)
// along with the exact total match count. size < 0 means "return every
// remaining match."
func (s *Store) MSet(query queryast.Node, from, size int, spies []matchspy.Spy) (items []MatchResult, total int, err error) {
	err = s.withView(func(tx *bolt.Tx) error {
		matches, evalErr := s.evaluate(tx, query)
		if evalErr != nil {
			return evalErr
		}
		total = len(matches)

		for _, id := range matches {
			for _, spy := range spies {
				var raw []byte
				if fc, ok := spy.(*matchspy.FacetCountSpy); ok {
					raw = s.slotValue(tx, fc.Slot, id)
				}
				spy.Observe(1.0, raw)
			}
		}

		if from >= len(matches) {
			return nil
		}
		end := len(matches)
		if size >= 0 && from+size < end {
			end = from + size
		}
		for _, id := range matches[from:end] {
			data := tx.Bucket(bucketDocuments).Get([]byte(id))
			var stored storedDoc
			if data != nil {
				_ = json.Unmarshal(data, &stored)
			}
			items = append(items, MatchResult{IDTerm: id, Data: stored.Data})
		}
		return nil
	})
	return items, total, err
}
