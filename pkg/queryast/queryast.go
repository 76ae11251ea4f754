// Package queryast defines the minimal query tree shared by pkg/schema (which
// builds leaf nodes from field configuration) and pkg/querybuilder (which
// composes them per spec §4.6). Keeping the tree in its own package avoids a
// schema <-> querybuilder import cycle.
package queryast

// Node is one node of a query tree. The concrete types below are the only
// implementations; indexstore type-switches over them when evaluating a
// query against the backend.
type Node interface {
	isNode()
}

// MatchAll matches every document in the collection.
type MatchAll struct{}

// MatchNothing matches no documents.
type MatchNothing struct{}

// Term matches documents carrying the given posting-list term, weighted by
// wdf (teacher/original naming: "within-document frequency").
type Term struct {
	Value string
}

// Or is a disjunction of sub-queries, used for "is"/"ancestor_is" field
// queries (one Term per accepted value) and for the "or" query builder key.
type Or struct {
	Children []Node
}

// And is a conjunction of sub-queries.
type And struct {
	Children []Node
}

// Xor requires an odd number of the children to match.
type Xor struct {
	Children []Node
}

// AndNot is Left AND NOT (Right[0] OR Right[1] OR ...).
type AndNot struct {
	Left  Node
	Right []Node
}

// AndMaybe is Left, with Right boosting the score of documents matching both.
type AndMaybe struct {
	Left  Node
	Right []Node
}

// Filter runs Query for ranking but restricts results to documents also
// matching Secondary (which contributes no weight).
type Filter struct {
	Query     Node
	Secondary Node
}

// Scale multiplies a sub-query's weight by Factor.
type Scale struct {
	Query  Node
	Factor float64
}

// TextQuery matches documents whose indexed text field satisfies a
// positional operator (and/or/phrase/near) over Terms.
type TextQuery struct {
	Prefix string
	Terms  []string
	Op     string // "and", "or", "phrase", "near"
	Window int
}

// ParsedQuery runs the backend's free-text query parser over Text with the
// prefix bound to the originating field.
type ParsedQuery struct {
	Prefix string
	Text   string
	Op     string // "and", "or"
}

// ValueRange matches documents whose slot value falls within [Low, High]
// (both encoded the way the field's indexer encoded them).
type ValueRange struct {
	Slot uint32
	Low  []byte
	High []byte
}

// Exists matches documents that have any value at all in Slot (or, when
// AnyField is true, in any slot at all).
type Exists struct {
	Slot     uint32
	AnyField bool
}

// Nonempty and Empty mirror Exists but test for the presence (or absence) of
// a specific field name in the document's stored field list, rather than a
// slot.
type Nonempty struct {
	Field string
}

type Empty struct {
	Field string
}

func (MatchAll) isNode()     {}
func (MatchNothing) isNode() {}
func (Term) isNode()         {}
func (Or) isNode()           {}
func (And) isNode()          {}
func (Xor) isNode()          {}
func (AndNot) isNode()       {}
func (AndMaybe) isNode()     {}
func (Filter) isNode()       {}
func (Scale) isNode()        {}
func (TextQuery) isNode()    {}
func (ParsedQuery) isNode()  {}
func (ValueRange) isNode()   {}
func (Exists) isNode()       {}
func (Nonempty) isNode()     {}
func (Empty) isNode()        {}
