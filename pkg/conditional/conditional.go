// Package conditional implements conditional expressions over decoded JSON
// documents, grounded on jsonmanip/conditionals.cc: a conditional is one
// clause, tagged by its single JSON object key ("exists", "get", "literal",
// or "equals"), evaluated against a document.
package conditional

import (
	"encoding/json"
	"reflect"

	"github.com/cuemby/restpose/pkg/jsonpath"
	"github.com/cuemby/restpose/pkg/rperrors"
)

// Clause is one conditional clause. apply returns the clause's JSON result
// when evaluated against document; test() on the owning Conditional then
// interprets that result as a boolean.
type Clause interface {
	name() string
	apply(document interface{}) interface{}
	toJSON() (interface{}, error)
}

// Conditional wraps a single clause, parsed from or rendered to JSON as
// {"<clause-name>": <clause-body>}.
type Conditional struct {
	clause Clause
}

// IsNull reports whether the conditional was parsed from JSON null (or never
// set).
func (c Conditional) IsNull() bool { return c.clause == nil }

// Test evaluates the conditional against value, returning whether it holds.
// Testing a null conditional is an error, matching the original's behaviour
// of raising on an uninitialised conditional.
func (c Conditional) Test(value interface{}) (bool, error) {
	if c.clause == nil {
		return false, rperrors.New(rperrors.KindInvalidValue, "cannot test a null conditional")
	}
	result := c.clause.apply(value)
	b, ok := result.(bool)
	if !ok {
		return false, rperrors.Invalidf("conditional clause %q did not produce a boolean", c.clause.name())
	}
	return b, nil
}

// ToJSON renders the conditional to its {"name": body} form, or null.
func (c Conditional) ToJSON() ([]byte, error) {
	if c.clause == nil {
		return json.Marshal(nil)
	}
	body, err := c.clause.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{c.clause.name(): body})
}

// FromJSON parses a conditional from its {"name": body} form.
func FromJSON(data []byte) (Conditional, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Conditional{}, rperrors.Wrap(rperrors.KindInvalidValue, "invalid conditional JSON", err)
	}
	if raw == nil {
		return Conditional{}, nil
	}
	clause, err := clauseFromValue(raw)
	if err != nil {
		return Conditional{}, err
	}
	return Conditional{clause: clause}, nil
}

func clauseFromValue(raw interface{}) (Clause, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok || len(obj) != 1 {
		return nil, rperrors.New(rperrors.KindInvalidValue, "conditional clause must be a single-key object")
	}
	for name, body := range obj {
		switch name {
		case "exists":
			return newExistsClause(body)
		case "get":
			return newGetClause(body)
		case "literal":
			return newLiteralClause(body), nil
		case "equals":
			return newEqualsClause(body)
		default:
			return nil, rperrors.Invalidf("unsupported conditional clause %q", name)
		}
	}
	panic("unreachable")
}

// existsClause tests whether path resolves inside the document.
type existsClause struct {
	path jsonpath.Path
}

func newExistsClause(body interface{}) (Clause, error) {
	path, err := pathFromValue(body)
	if err != nil {
		return nil, err
	}
	return existsClause{path: path}, nil
}

func (c existsClause) name() string                     { return "exists" }
func (c existsClause) apply(document interface{}) interface{} { return jsonpath.Exists(document, c.path) }
func (c existsClause) toJSON() (interface{}, error)      { return pathToValue(c.path) }

// getClause fetches the value at path, or null if it does not resolve.
type getClause struct {
	path jsonpath.Path
}

func newGetClause(body interface{}) (Clause, error) {
	path, err := pathFromValue(body)
	if err != nil {
		return nil, err
	}
	return getClause{path: path}, nil
}

func (c getClause) name() string { return "get" }
func (c getClause) apply(document interface{}) interface{} {
	v, ok := jsonpath.Find(document, c.path)
	if !ok {
		return nil
	}
	return v
}
func (c getClause) toJSON() (interface{}, error) { return pathToValue(c.path) }

// literalClause always returns a fixed value, ignoring the document.
type literalClause struct {
	value interface{}
}

func newLiteralClause(body interface{}) Clause { return literalClause{value: body} }

func (c literalClause) name() string                          { return "literal" }
func (c literalClause) apply(document interface{}) interface{} { return c.value }
func (c literalClause) toJSON() (interface{}, error)          { return c.value, nil }

// equalsClause tests that every child clause produces the same result
// against the document. Zero or one children are trivially equal.
type equalsClause struct {
	children []Clause
}

func newEqualsClause(body interface{}) (Clause, error) {
	arr, ok := body.([]interface{})
	if !ok {
		return nil, rperrors.New(rperrors.KindInvalidValue, "equals clause body must be an array")
	}
	children := make([]Clause, len(arr))
	for i, v := range arr {
		clause, err := clauseFromValue(v)
		if err != nil {
			return nil, err
		}
		children[i] = clause
	}
	return equalsClause{children: children}, nil
}

func (c equalsClause) name() string { return "equals" }

func (c equalsClause) apply(document interface{}) interface{} {
	if len(c.children) <= 1 {
		return true
	}
	first := c.children[0].apply(document)
	for _, child := range c.children[1:] {
		if !reflect.DeepEqual(child.apply(document), first) {
			return false
		}
	}
	return true
}

func (c equalsClause) toJSON() (interface{}, error) {
	out := make([]interface{}, len(c.children))
	for i, child := range c.children {
		body, err := child.toJSON()
		if err != nil {
			return nil, err
		}
		out[i] = map[string]interface{}{child.name(): body}
	}
	return out, nil
}

func pathFromValue(body interface{}) (jsonpath.Path, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid path", err)
	}
	return jsonpath.FromJSON(raw)
}

func pathToValue(path jsonpath.Path) (interface{}, error) {
	raw, err := path.ToJSON()
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
