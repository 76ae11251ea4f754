// Package querybuilder translates the JSON query-object language of spec
// §4.6 into a queryast.Node tree, delegating field-level leaves to
// pkg/schema's per-field Query methods. Grounded on jsonxapian/queryparser.cc
// (the original's single-recognized-key dispatch over a query object) and on
// schema.cc's own field-query delegation.
package querybuilder

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/restpose/pkg/queryast"
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/schema"
)

// FieldResolver looks up every field config that applies to a field name.
// A type-specific builder resolves at most one; a collection-wide builder
// resolves one per document type whose schema defines the field, so the
// caller can OR across types.
type FieldResolver interface {
	Lookup(field string) []schema.FieldConfig
}

// singleSchemaResolver backs a type-specific builder.
type singleSchemaResolver struct {
	s *schema.Schema
}

func (r singleSchemaResolver) Lookup(field string) []schema.FieldConfig {
	cfg := r.s.Get(field)
	if cfg == nil {
		return nil
	}
	return []schema.FieldConfig{cfg}
}

// collectionResolver backs a collection-wide builder: it ORs the field
// query across every document type whose schema defines the field.
type collectionResolver struct {
	schemas map[string]*schema.Schema
}

func (r collectionResolver) Lookup(field string) []schema.FieldConfig {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []schema.FieldConfig
	for _, name := range names {
		if cfg := r.schemas[name].Get(field); cfg != nil {
			out = append(out, cfg)
		}
	}
	return out
}

// Builder walks a query JSON object into a queryast.Node tree.
type Builder struct {
	resolver FieldResolver
}

// NewTypeBuilder returns a builder that resolves fields against a single
// document type's schema.
func NewTypeBuilder(s *schema.Schema) *Builder {
	return &Builder{resolver: singleSchemaResolver{s: s}}
}

// NewCollectionBuilder returns a builder that resolves fields across every
// document type in the collection, ORing the field query across every type
// whose schema defines it.
func NewCollectionBuilder(schemas map[string]*schema.Schema) *Builder {
	return &Builder{resolver: collectionResolver{schemas: schemas}}
}

// Build parses a single query object and returns its query tree. Exactly
// one of the recognized top-level keys must be present.
func (b *Builder) Build(data json.RawMessage) (queryast.Node, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "query must be a JSON object", err)
	}
	if len(obj) != 1 {
		return nil, rperrors.Invalidf("query object must have exactly one key, got %d", len(obj))
	}

	for key, payload := range obj {
		switch key {
		case "matchall":
			return queryast.MatchAll{}, nil
		case "matchnothing":
			return queryast.MatchNothing{}, nil
		case "field":
			return b.buildFieldQuery(payload)
		case "meta":
			return b.buildMetaQuery(payload)
		case "filter":
			return b.buildFilter(payload)
		case "and":
			return b.buildComposite(payload, func(c []queryast.Node) queryast.Node { return queryast.And{Children: c} })
		case "or":
			return b.buildComposite(payload, func(c []queryast.Node) queryast.Node { return queryast.Or{Children: c} })
		case "xor":
			return b.buildComposite(payload, func(c []queryast.Node) queryast.Node { return queryast.Xor{Children: c} })
		case "not":
			return b.buildNot(payload)
		case "and_maybe":
			return b.buildAndMaybe(payload)
		case "scale":
			return b.buildScale(payload)
		default:
			return nil, rperrors.Invalidf("unrecognized query key %q", key)
		}
	}
	panic("unreachable")
}

// buildFieldQuery resolves [name, qtype, params] against every schema that
// defines the field, ORing the successful leaves together. A field absent
// from every relevant schema yields matchnothing, per spec.
func (b *Builder) buildFieldQuery(payload json.RawMessage) (queryast.Node, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil || len(parts) != 3 {
		return nil, rperrors.Invalidf("field query must be [name, qtype, params]")
	}
	var name, qtype string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return nil, rperrors.Invalidf("field query name must be a string")
	}
	if err := json.Unmarshal(parts[1], &qtype); err != nil {
		return nil, rperrors.Invalidf("field query qtype must be a string")
	}
	return b.queryAgainstConfigs(b.resolver.Lookup(name), qtype, parts[2])
}

// buildMetaQuery is buildFieldQuery specialised to the fixed "meta" field
// name, per spec's "as field on the collection's meta-field".
func (b *Builder) buildMetaQuery(payload json.RawMessage) (queryast.Node, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil || len(parts) != 2 {
		return nil, rperrors.Invalidf("meta query must be [qtype, params]")
	}
	var qtype string
	if err := json.Unmarshal(parts[0], &qtype); err != nil {
		return nil, rperrors.Invalidf("meta query qtype must be a string")
	}
	return b.queryAgainstConfigs(b.resolver.Lookup(schema.MetaFieldName), qtype, parts[1])
}

func (b *Builder) queryAgainstConfigs(configs []schema.FieldConfig, qtype string, params json.RawMessage) (queryast.Node, error) {
	if len(configs) == 0 {
		return queryast.MatchNothing{}, nil
	}
	var nodes []queryast.Node
	var lastErr error
	for _, cfg := range configs {
		node, err := cfg.Query(qtype, params)
		if err != nil {
			lastErr = err
			continue
		}
		nodes = append(nodes, node)
	}
	if len(nodes) == 0 {
		return nil, lastErr
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return queryast.Or{Children: nodes}, nil
}

func (b *Builder) buildFilter(payload json.RawMessage) (queryast.Node, error) {
	var body struct {
		Query  json.RawMessage `json:"query"`
		Filter json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "filter query must be {query, filter}", err)
	}
	query, err := b.Build(body.Query)
	if err != nil {
		return nil, err
	}
	secondary, err := b.Build(body.Filter)
	if err != nil {
		return nil, err
	}
	return queryast.Filter{Query: query, Secondary: secondary}, nil
}

func (b *Builder) buildComposite(payload json.RawMessage, combine func([]queryast.Node) queryast.Node) (queryast.Node, error) {
	children, err := b.buildArray(payload)
	if err != nil {
		return nil, err
	}
	return combine(children), nil
}

func (b *Builder) buildNot(payload json.RawMessage) (queryast.Node, error) {
	children, err := b.buildArray(payload)
	if err != nil {
		return nil, err
	}
	if len(children) < 2 {
		return nil, rperrors.Invalidf("not requires at least 2 sub-queries")
	}
	return queryast.AndNot{Left: children[0], Right: children[1:]}, nil
}

func (b *Builder) buildAndMaybe(payload json.RawMessage) (queryast.Node, error) {
	children, err := b.buildArray(payload)
	if err != nil {
		return nil, err
	}
	if len(children) < 2 {
		return nil, rperrors.Invalidf("and_maybe requires at least 2 sub-queries")
	}
	return queryast.AndMaybe{Left: children[0], Right: children[1:]}, nil
}

func (b *Builder) buildScale(payload json.RawMessage) (queryast.Node, error) {
	var body struct {
		Query  json.RawMessage `json:"query"`
		Factor float64         `json:"factor"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "scale query must be {query, factor}", err)
	}
	query, err := b.Build(body.Query)
	if err != nil {
		return nil, err
	}
	return queryast.Scale{Query: query, Factor: body.Factor}, nil
}

func (b *Builder) buildArray(payload json.RawMessage) ([]queryast.Node, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "expected a query array", err)
	}
	out := make([]queryast.Node, 0, len(raw))
	for _, item := range raw {
		node, err := b.Build(item)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}
