// Package jsonpath implements paths into decoded JSON values (the result of
// encoding/json's generic interface{} decoding), grounded on
// jsonmanip/jsonpath.cc: a path is a sequence of components, each either an
// object key or an array index.
package jsonpath

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/restpose/pkg/rperrors"
)

// Component is one step of a Path: either a map key or an array index.
type Component struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key builds a key component.
func Key(key string) Component { return Component{Key: key} }

// Index builds an index component.
func Index(index int) Component { return Component{Index: index, IsIndex: true} }

// Path is a sequence of components locating a value inside a decoded
// document.
type Path []Component

// AppendKey returns a new path with a key component appended.
func (p Path) AppendKey(key string) Path { return append(append(Path{}, p...), Key(key)) }

// AppendIndex returns a new path with an index component appended.
func (p Path) AppendIndex(index int) Path { return append(append(Path{}, p...), Index(index)) }

// ToJSON renders the path the way the original implementation does: an array
// mixing string keys and integer indices.
func (p Path) ToJSON() ([]byte, error) {
	raw := make([]interface{}, len(p))
	for i, c := range p {
		if c.IsIndex {
			raw[i] = c.Index
		} else {
			raw[i] = c.Key
		}
	}
	return json.Marshal(raw)
}

// FromJSON parses a path from its JSON array form.
func FromJSON(data []byte) (Path, error) {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "path must be a JSON array", err)
	}
	path := make(Path, len(raw))
	for i, v := range raw {
		switch t := v.(type) {
		case string:
			path[i] = Key(t)
		case float64:
			if t < 0 {
				return nil, rperrors.Invalidf("path component %d is a negative index", i)
			}
			path[i] = Index(int(t))
		default:
			return nil, rperrors.Invalidf("path component %d must be a string or integer", i)
		}
	}
	return path, nil
}

// Find looks up path in value, returning (nil, false) if any component of
// the path cannot be resolved: an object key missing, an array index out of
// range, or a component type mismatched against the value at that point.
func Find(value interface{}, path Path) (interface{}, bool) {
	current := value
	for _, c := range path {
		if c.IsIndex {
			arr, ok := current.([]interface{})
			if !ok || c.Index < 0 || c.Index >= len(arr) {
				return nil, false
			}
			current = arr[c.Index]
		} else {
			obj, ok := current.(map[string]interface{})
			if !ok {
				return nil, false
			}
			v, present := obj[c.Key]
			if !present {
				return nil, false
			}
			current = v
		}
	}
	return current, true
}

// Exists reports whether path resolves to a value within value.
func Exists(value interface{}, path Path) bool {
	_, ok := Find(value, path)
	return ok
}

// String renders the path for diagnostics, e.g. "a.b[2].c".
func (p Path) String() string {
	s := ""
	for i, c := range p {
		if c.IsIndex {
			s += fmt.Sprintf("[%d]", c.Index)
		} else {
			if i > 0 {
				s += "."
			}
			s += c.Key
		}
	}
	return s
}
