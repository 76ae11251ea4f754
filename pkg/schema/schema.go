// Package schema implements spec §4.4: per-field configuration, document
// processing into postings/values/stored data, pattern-based
// auto-configuration, and per-field query construction. Grounded on
// jsonxapian/schema.cc/.h, adapted from Xapian documents/terms/slots onto
// this module's own pkg/docdata, pkg/slotname, pkg/slotcodec, and
// pkg/taxonomy.
package schema

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/taxonomy"
)

// MetaFieldName is the reserved field name the meta indexer runs under; a
// document may never assign to it directly.
const MetaFieldName = "meta"

// IndexError records a per-field failure encountered while processing a
// document; process() accumulates these rather than aborting the whole
// document on the first bad field.
type IndexError struct {
	Field string
	Msg   string
}

func (e IndexError) Error() string { return e.Field + ": " + e.Msg }

// Pattern is one entry of a schema's ordered auto-configuration list: Match
// is either a literal field name or a "*suffix" glob; Template is the
// field-config JSON to instantiate (with "*" substituted by the matched
// prefix) the first time a field matching Match is seen without explicit
// config.
type Pattern struct {
	Match    string
	Template json.RawMessage
}

// Schema holds the configuration for every field of one document type.
type Schema struct {
	mu         sync.RWMutex
	fields     map[string]FieldConfig
	patterns   []Pattern
	taxResolve func(name string) (*taxonomy.Taxonomy, error)
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{fields: make(map[string]FieldConfig)}
}

// Get returns the config for fieldname, or nil if none is set.
func (s *Schema) Get(fieldname string) FieldConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[fieldname]
}

// Set installs config for fieldname, overwriting any existing config.
func (s *Schema) Set(fieldname string, config FieldConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindTaxonomyResolverLocked(config)
	s.fields[fieldname] = config
}

// SetTaxonomyResolver installs the function cat field configs use to look
// up a named taxonomy, applying it immediately to every already-configured
// cat field and to every one auto-configured or loaded afterwards. Set by
// the owning collection, which is the only thing that knows its taxonomy
// registry; schema.cc's own FieldConfig subclasses have no such back
// reference; this is this module's substitute.
func (s *Schema) SetTaxonomyResolver(resolve func(name string) (*taxonomy.Taxonomy, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxResolve = resolve
	for _, cfg := range s.fields {
		s.bindTaxonomyResolverLocked(cfg)
	}
}

// bindTaxonomyResolverLocked sets cfg's taxonomy resolver if it is a cat
// field lacking one and a resolver is configured. Must be called with
// s.mu held.
func (s *Schema) bindTaxonomyResolverLocked(cfg FieldConfig) {
	if s.taxResolve == nil {
		return
	}
	if cat, ok := cfg.(*CatConfig); ok && cat.Taxonomies == nil {
		cat.Taxonomies = s.taxResolve
	}
}

// Fields returns every configured field name, sorted.
func (s *Schema) Fields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetPatterns replaces the schema's auto-configuration pattern list.
func (s *Schema) SetPatterns(patterns []Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = patterns
}

// Patterns returns the schema's auto-configuration pattern list.
func (s *Schema) Patterns() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Pattern{}, s.patterns...)
}

// autoConfigure scans the pattern list for the first match against
// fieldname, instantiates its template (substituting "*" for the matched
// prefix in every string value), and persists the result. Returns nil if no
// pattern matches.
func (s *Schema) autoConfigure(fieldname string) (FieldConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg, ok := s.fields[fieldname]; ok {
		return cfg, nil
	}

	for _, p := range s.patterns {
		prefix, matched := matchPattern(p.Match, fieldname)
		if !matched {
			continue
		}
		substituted := substituteStar(p.Template, prefix)
		cfg, err := FieldConfigFromJSON(substituted)
		if err != nil {
			return nil, rperrors.Wrapf(rperrors.KindInvalidValue, err,
				"pattern %q produced an invalid field config for %q", p.Match, fieldname)
		}
		s.bindTaxonomyResolverLocked(cfg)
		s.fields[fieldname] = cfg
		return cfg, nil
	}
	return nil, nil
}

// matchPattern reports whether pattern (a literal name or "*suffix" glob)
// matches fieldname, and if so the prefix that the "*" stood in for (empty
// for a literal match).
func matchPattern(pattern, fieldname string) (prefix string, ok bool) {
	if !strings.HasPrefix(pattern, "*") {
		return "", pattern == fieldname
	}
	suffix := pattern[1:]
	if !strings.HasSuffix(fieldname, suffix) {
		return "", false
	}
	return fieldname[:len(fieldname)-len(suffix)], true
}

// substituteStar recursively replaces "*" in every JSON string value (but
// not object keys) with prefix.
func substituteStar(template json.RawMessage, prefix string) json.RawMessage {
	var v interface{}
	if err := json.Unmarshal(template, &v); err != nil {
		return template
	}
	out := substituteStarValue(v, prefix)
	data, err := json.Marshal(out)
	if err != nil {
		return template
	}
	return data
}

func substituteStarValue(v interface{}, prefix string) interface{} {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, "*", prefix)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = substituteStarValue(e, prefix)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = substituteStarValue(e, prefix)
		}
		return out
	default:
		return v
	}
}

// MergeFrom merges other's field configs and patterns into s. A field
// present in both must serialize to byte-identical JSON, or merge fails.
// If other defines any patterns at all, they wholly replace s's patterns.
func (s *Schema) MergeFrom(other *Schema) error {
	other.mu.RLock()
	otherFields := make(map[string]FieldConfig, len(other.fields))
	for k, v := range other.fields {
		otherFields[k] = v
	}
	otherPatterns := append([]Pattern{}, other.patterns...)
	other.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, cfg := range otherFields {
		existing, ok := s.fields[name]
		if !ok {
			s.bindTaxonomyResolverLocked(cfg)
			s.fields[name] = cfg
			continue
		}
		existingJSON, err := json.Marshal(existing)
		if err != nil {
			return err
		}
		newJSON, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		if string(existingJSON) != string(newJSON) {
			return rperrors.Invalidf("field %q has incompatible configuration in merge", name)
		}
	}
	if len(otherPatterns) > 0 {
		s.patterns = otherPatterns
	}
	return nil
}
