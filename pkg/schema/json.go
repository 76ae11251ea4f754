package schema

import (
	"encoding/json"
	"strings"

	"github.com/cuemby/restpose/pkg/rperrors"
)

// ToJSON renders the schema as {"fields": {name: config, ...}, "patterns":
// [[match, template], ...]}, matching schema.cc's Schema::to_json.
func (s *Schema) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{}
	if len(s.fields) > 0 {
		fields := make(map[string]FieldConfig, len(s.fields))
		for name, cfg := range s.fields {
			fields[name] = cfg
		}
		out["fields"] = fields
	}
	patterns := make([][2]interface{}, len(s.patterns))
	for i, p := range s.patterns {
		var tmpl interface{}
		_ = json.Unmarshal(p.Template, &tmpl)
		patterns[i] = [2]interface{}{p.Match, tmpl}
	}
	out["patterns"] = patterns
	return json.Marshal(out)
}

// docTypeFromFields is a placeholder doc-type used when parsing id-field
// configs out of context; Schema.Process rebinds the real doc-type at
// process time, since an id field's serialised config does not record
// its document type.
const docTypeFromFields = ""

// FromJSON parses a schema previously serialised with ToJSON.
func FromJSON(data []byte) (*Schema, error) {
	var raw struct {
		Fields   map[string]json.RawMessage `json:"fields"`
		Patterns []json.RawMessage          `json:"patterns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid schema JSON", err)
	}

	s := New()
	for name, fieldData := range raw.Fields {
		cfg, err := fieldConfigFromJSON(fieldData, docTypeFromFields)
		if err != nil {
			return nil, rperrors.Wrapf(rperrors.KindInvalidValue, err, "field %q", name)
		}
		s.fields[name] = cfg
	}

	patterns := make([]Pattern, 0, len(raw.Patterns))
	for _, p := range raw.Patterns {
		var pair []json.RawMessage
		if err := json.Unmarshal(p, &pair); err != nil || len(pair) != 2 {
			return nil, rperrors.New(rperrors.KindInvalidValue, "schema patterns must be arrays of length 2")
		}
		var match string
		if err := json.Unmarshal(pair[0], &match); err != nil {
			return nil, rperrors.Wrap(rperrors.KindInvalidValue, "pattern match must be a string", err)
		}
		if strings.Count(match, "*") > 1 || (strings.Contains(match, "*") && !strings.HasPrefix(match, "*")) {
			return nil, rperrors.New(rperrors.KindInvalidValue, "fields in schema patterns must not contain a * other than at the start")
		}
		patterns = append(patterns, Pattern{Match: match, Template: pair[1]})
	}
	s.patterns = patterns
	return s, nil
}
