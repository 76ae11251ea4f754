package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/cuemby/restpose/pkg/queryast"
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/slotname"
	"github.com/cuemby/restpose/pkg/taxonomy"
)

// FieldConfig is the per-field configuration contract: how to index
// incoming values and how to translate a query-builder field query into a
// queryast.Node. Concrete types are grounded one-to-one on schema.cc's
// FieldConfig subclasses.
type FieldConfig interface {
	Type() string
	Index(values []interface{}, ctx *ProcessContext) []IndexError
	Query(qtype string, params json.RawMessage) (queryast.Node, error)
	MarshalJSON() ([]byte, error)
}

// TooLongAction names what happens when a length-limited field's value
// exceeds MaxLength.
type TooLongAction string

const (
	TooLongError    TooLongAction = "error"
	TooLongHash     TooLongAction = "hash"
	TooLongTruncate TooLongAction = "truncate"
)

func parseTooLongAction(s string) (TooLongAction, error) {
	switch TooLongAction(s) {
	case "", TooLongError:
		return TooLongError, nil
	case TooLongHash:
		return TooLongHash, nil
	case TooLongTruncate:
		return TooLongTruncate, nil
	default:
		return "", rperrors.Invalidf("too_long_action %q is not supported", s)
	}
}

// hashSuffixLen is the width of the fixed hash suffix too-long-hash
// replaces the excess with, per spec §8 test 2.
const hashSuffixLen = 8

func applyTooLong(value string, maxLength int, action TooLongAction) (string, error) {
	if maxLength <= 0 || len(value) <= maxLength {
		return value, nil
	}
	switch action {
	case TooLongTruncate:
		return value[:maxLength], nil
	case TooLongHash:
		return hashTruncate(value, maxLength), nil
	default:
		return "", rperrors.Invalidf("value exceeds max_length %d", maxLength)
	}
}

// hashTruncate keeps as many leading bytes of value as fit alongside a
// fixed 8-byte FNV-1a hash suffix of the whole value, so the result is
// exactly maxLength bytes (or the hash alone, if maxLength is too small to
// keep any prefix).
func hashTruncate(value string, maxLength int) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(value))
	sum := h.Sum(nil)
	if maxLength <= hashSuffixLen {
		return string(sum[:maxLength])
	}
	keep := maxLength - hashSuffixLen
	return value[:keep] + string(sum)
}

func stringify(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		// Preserves the exact textual form the document or query arrived
		// with (e.g. "18446744073709551615"), instead of round-tripping
		// through float64 and losing precision above 2^53.
		return t.String(), nil
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", rperrors.Invalidf("value %v cannot be used as a field value", v)
	}
}

// decodeJSONNumber unmarshals raw into v the same way json.Unmarshal would,
// except that JSON numbers land as json.Number instead of float64 so large
// integers (ids, in particular) keep their exact textual form instead of
// being rounded through a 64-bit float.
func decodeJSONNumber(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func resolveSlot(raw json.RawMessage) (uint32, error) {
	if len(raw) == 0 {
		return slotname.NoSlot, nil
	}
	var asNum float64
	if err := json.Unmarshal(raw, &asNum); err == nil {
		slot, ok := slotname.Resolve("", uint32(asNum), true)
		if !ok {
			return 0, rperrors.Invalidf("slot number %v is reserved", asNum)
		}
		return slot, nil
	}
	var asStr string
	if err := json.Unmarshal(raw, &asStr); err == nil {
		slot, _ := slotname.Resolve(asStr, 0, false)
		return slot, nil
	}
	return 0, rperrors.Invalidf("slot must be a number or string")
}

func slotToJSON(slot uint32) json.RawMessage {
	data, _ := json.Marshal(slot)
	return data
}

func termsFromValues(prefix string, values []interface{}) ([]string, error) {
	terms := make([]string, 0, len(values))
	for _, v := range values {
		s, err := stringify(v)
		if err != nil {
			return nil, err
		}
		terms = append(terms, prefix+s)
	}
	return terms, nil
}

func orOfTerms(terms []string) queryast.Node {
	if len(terms) == 0 {
		return queryast.MatchNothing{}
	}
	children := make([]queryast.Node, len(terms))
	for i, t := range terms {
		children[i] = queryast.Term{Value: t}
	}
	if len(children) == 1 {
		return children[0]
	}
	return queryast.Or{Children: children}
}

func parseArrayParams(params json.RawMessage) ([]interface{}, error) {
	var arr []interface{}
	if err := decodeJSONNumber(params, &arr); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "field query value must be an array", err)
	}
	return arr, nil
}

// --- id --------------------------------------------------------------

// IDConfig configures the document-identity field: exactly one value per
// document, indexed with the owning document type baked into its prefix.
type IDConfig struct {
	DocType       string
	MaxLength     int
	TooLongAction TooLongAction
	StoreField    string
}

func (c *IDConfig) Type() string { return "id" }

func (c *IDConfig) prefix() string { return "\t" + c.DocType + "\t" }

func (c *IDConfig) Index(values []interface{}, ctx *ProcessContext) []IndexError {
	if len(values) != 1 {
		return []IndexError{{Field: ctx.FieldName, Msg: "id field must have exactly one value"}}
	}
	raw, err := stringify(values[0])
	if err != nil {
		return []IndexError{{Field: ctx.FieldName, Msg: err.Error()}}
	}
	raw, err = applyTooLong(raw, c.MaxLength, c.TooLongAction)
	if err != nil {
		return []IndexError{{Field: ctx.FieldName, Msg: err.Error()}}
	}
	ctx.IDTerm = c.prefix() + raw
	if c.StoreField != "" {
		ctx.Doc.Set(c.StoreField, raw)
	}
	ctx.MarkPresent(ctx.FieldName)
	return nil
}

func (c *IDConfig) Query(qtype string, params json.RawMessage) (queryast.Node, error) {
	if qtype != "is" {
		return nil, rperrors.Invalidf("invalid query type %q for id field", qtype)
	}
	values, err := parseArrayParams(params)
	if err != nil {
		return nil, err
	}
	terms, err := termsFromValues(c.prefix(), values)
	if err != nil {
		return nil, err
	}
	return orOfTerms(terms), nil
}

func (c *IDConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":            "id",
		"max_length":      c.MaxLength,
		"too_long_action": string(c.TooLongAction),
		"store_field":     c.StoreField,
	})
}

// --- exact -------------------------------------------------------------

// ExactConfig configures an exact-match keyword field.
type ExactConfig struct {
	Prefix        string
	WDFInc        int
	MaxLength     int
	TooLongAction TooLongAction
	StoreField    string
}

func (c *ExactConfig) Type() string { return "exact" }

func (c *ExactConfig) termPrefix() string { return c.Prefix + "\t" }

func (c *ExactConfig) Index(values []interface{}, ctx *ProcessContext) []IndexError {
	var errs []IndexError
	for _, v := range values {
		s, err := stringify(v)
		if err != nil {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: err.Error()})
			continue
		}
		s, err = applyTooLong(s, c.MaxLength, c.TooLongAction)
		if err != nil {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: err.Error()})
			continue
		}
		ctx.AddTerm(c.termPrefix()+s, c.WDFInc)
		if c.StoreField != "" {
			ctx.Doc.Set(c.StoreField, s)
		}
	}
	ctx.MarkPresent(ctx.FieldName)
	return errs
}

func (c *ExactConfig) Query(qtype string, params json.RawMessage) (queryast.Node, error) {
	if qtype != "is" {
		return nil, rperrors.Invalidf("invalid query type %q for exact field", qtype)
	}
	values, err := parseArrayParams(params)
	if err != nil {
		return nil, err
	}
	terms, err := termsFromValues(c.termPrefix(), values)
	if err != nil {
		return nil, err
	}
	return orOfTerms(terms), nil
}

func (c *ExactConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":            "exact",
		"prefix":          c.Prefix,
		"wdfinc":          c.WDFInc,
		"max_length":      c.MaxLength,
		"too_long_action": string(c.TooLongAction),
		"store_field":     c.StoreField,
	})
}

// --- text ----------------------------------------------------------

// TextConfig configures a full-text field. Processor selects tokenisation:
// "cjk" runs the CJK per-character tokeniser; any other value runs the
// stemmed English-oriented tokeniser.
type TextConfig struct {
	Prefix     string
	StoreField string
	Processor  string
}

func (c *TextConfig) Type() string { return "text" }

func (c *TextConfig) termPrefix() string { return c.Prefix + "\t" }

func (c *TextConfig) Index(values []interface{}, ctx *ProcessContext) []IndexError {
	var errs []IndexError
	for _, v := range values {
		s, err := stringify(v)
		if err != nil {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: err.Error()})
			continue
		}
		if c.Processor == "cjk" {
			for _, tok := range tokenizeCJK(s) {
				ctx.AddTerm(c.termPrefix()+tok, 1)
			}
		} else {
			for _, tok := range tokenizeStem(s) {
				ctx.AddTerm(c.termPrefix()+tok, 1)
				ctx.AddTerm("Z"+c.termPrefix()+stem(tok), 1)
			}
		}
		if c.StoreField != "" {
			ctx.Doc.Set(c.StoreField, s)
		}
	}
	ctx.MarkPresent(ctx.FieldName)
	return errs
}

func (c *TextConfig) Query(qtype string, params json.RawMessage) (queryast.Node, error) {
	var body struct {
		Text   string `json:"text"`
		Op     string `json:"op"`
		Window int    `json:"window"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid text query params", err)
	}
	switch qtype {
	case "text":
		switch body.Op {
		case "", "and", "or", "phrase", "near":
		default:
			return nil, rperrors.Invalidf("invalid op %q for text query", body.Op)
		}
		op := body.Op
		if op == "" {
			op = "or"
		}
		return queryast.TextQuery{Prefix: c.termPrefix(), Terms: tokenizeStem(body.Text), Op: op, Window: body.Window}, nil
	case "parse":
		switch body.Op {
		case "", "and", "or":
		default:
			return nil, rperrors.Invalidf("invalid op %q for parse query", body.Op)
		}
		op := body.Op
		if op == "" {
			op = "or"
		}
		return queryast.ParsedQuery{Prefix: c.termPrefix(), Text: body.Text, Op: op}, nil
	default:
		return nil, rperrors.Invalidf("invalid query type %q for text field", qtype)
	}
}

func (c *TextConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":        "text",
		"prefix":      c.Prefix,
		"store_field": c.StoreField,
		"processor":   c.Processor,
	})
}

// --- date / timestamp ------------------------------------------------

// DateConfig configures a calendar-date field, stored as sortable bytes in
// a value slot.
type DateConfig struct {
	Slot       uint32
	StoreField string
}

func (c *DateConfig) Type() string { return "date" }

func (c *DateConfig) Index(values []interface{}, ctx *ProcessContext) []IndexError {
	var errs []IndexError
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: "date value must be a string"})
			continue
		}
		encoded, err := encodeDate(s)
		if err != nil {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: err.Error()})
			continue
		}
		ctx.SetSlot(c.Slot, encoded)
		if c.StoreField != "" {
			ctx.Doc.Set(c.StoreField, s)
		}
	}
	ctx.MarkPresent(ctx.FieldName)
	return errs
}

func (c *DateConfig) Query(qtype string, params json.RawMessage) (queryast.Node, error) {
	if qtype != "range" {
		return nil, rperrors.Invalidf("invalid query type %q for date field", qtype)
	}
	var bounds [2]string
	if err := json.Unmarshal(params, &bounds); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "date range must have exactly two points", err)
	}
	low, err := encodeDate(bounds[0])
	if err != nil {
		return nil, err
	}
	high, err := encodeDate(bounds[1])
	if err != nil {
		return nil, err
	}
	return queryast.ValueRange{Slot: c.Slot, Low: low, High: high}, nil
}

func (c *DateConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":        "date",
		"slot":        c.Slot,
		"store_field": c.StoreField,
	})
}

// TimestampConfig configures a non-negative-integer timestamp field.
type TimestampConfig struct {
	Slot       uint32
	StoreField string
}

func (c *TimestampConfig) Type() string { return "timestamp" }

func (c *TimestampConfig) Index(values []interface{}, ctx *ProcessContext) []IndexError {
	var errs []IndexError
	for _, v := range values {
		n, ok := nonNegativeInteger(v)
		if !ok {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: "timestamp value must be a non-negative integer"})
			continue
		}
		ctx.SetSlot(c.Slot, encodeSortableUint(n))
		if c.StoreField != "" {
			ctx.Doc.Set(c.StoreField, strconv.FormatUint(n, 10))
		}
	}
	ctx.MarkPresent(ctx.FieldName)
	return errs
}

// nonNegativeInteger accepts either a json.Number (the decoding this
// package uses for document/query bodies, which keeps full uint64 range
// intact) or a plain float64, and reports whether v is a non-negative
// integer value.
func nonNegativeInteger(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := strconv.ParseUint(t.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		if t < 0 || t != float64(int64(t)) {
			return 0, false
		}
		return uint64(t), true
	default:
		return 0, false
	}
}

func (c *TimestampConfig) Query(qtype string, params json.RawMessage) (queryast.Node, error) {
	if qtype != "range" {
		return nil, rperrors.Invalidf("invalid query type %q for timestamp field", qtype)
	}
	var bounds [2]uint64
	if err := json.Unmarshal(params, &bounds); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "timestamp range must have exactly two points", err)
	}
	return queryast.ValueRange{Slot: c.Slot, Low: encodeSortableUint(bounds[0]), High: encodeSortableUint(bounds[1])}, nil
}

func (c *TimestampConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":        "timestamp",
		"slot":        c.Slot,
		"store_field": c.StoreField,
	})
}

// --- cat ---------------------------------------------------------------

// CatConfig configures a taxonomy-backed category field.
type CatConfig struct {
	Prefix        string
	Taxonomy      string
	MaxLength     int
	TooLongAction TooLongAction
	StoreField    string

	// Taxonomies resolves a taxonomy by name; set by the schema's owner
	// (the collection) before processing documents.
	Taxonomies func(name string) (*taxonomy.Taxonomy, error)
}

func (c *CatConfig) Type() string { return "cat" }

func (c *CatConfig) termPrefix() string { return c.Prefix + "\t" }

func (c *CatConfig) Index(values []interface{}, ctx *ProcessContext) []IndexError {
	var errs []IndexError
	if c.Taxonomies == nil {
		return []IndexError{{Field: ctx.FieldName, Msg: "no taxonomy resolver configured"}}
	}
	tax, err := c.Taxonomies(c.Taxonomy)
	if err != nil {
		return []IndexError{{Field: ctx.FieldName, Msg: err.Error()}}
	}
	for _, v := range values {
		cat, err := stringify(v)
		if err != nil {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: err.Error()})
			continue
		}
		cat, err = applyTooLong(cat, c.MaxLength, c.TooLongAction)
		if err != nil {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: err.Error()})
			continue
		}
		if !tax.Has(cat) {
			errs = append(errs, IndexError{Field: ctx.FieldName, Msg: fmt.Sprintf("unknown category %q", cat)})
			continue
		}
		ctx.AddTerm(c.termPrefix()+"C"+cat, 1)
		node, _ := tax.Get(cat)
		for ancestor := range node.Ancestors {
			ctx.AddTerm(c.termPrefix()+"A"+ancestor, 1)
		}
		ctx.AddTerm(c.termPrefix()+"A"+cat, 1)
		if c.StoreField != "" {
			ctx.Doc.Set(c.StoreField, cat)
		}
	}
	ctx.MarkPresent(ctx.FieldName)
	return errs
}

func (c *CatConfig) Query(qtype string, params json.RawMessage) (queryast.Node, error) {
	var termPrefix string
	switch qtype {
	case "is":
		termPrefix = c.termPrefix() + "C"
	case "ancestor_is":
		termPrefix = c.termPrefix() + "A"
	default:
		return nil, rperrors.Invalidf("invalid query type %q for cat field", qtype)
	}
	values, err := parseArrayParams(params)
	if err != nil {
		return nil, err
	}
	terms, err := termsFromValues(termPrefix, values)
	if err != nil {
		return nil, err
	}
	return orOfTerms(terms), nil
}

func (c *CatConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":            "cat",
		"prefix":          c.Prefix,
		"taxonomy":        c.Taxonomy,
		"max_length":      c.MaxLength,
		"too_long_action": string(c.TooLongAction),
		"store_field":     c.StoreField,
	})
}

// --- stored / ignore / meta -------------------------------------------

// StoredConfig configures a field that is stored but never indexed.
type StoredConfig struct {
	StoreField string
}

func (c *StoredConfig) Type() string { return "stored" }

func (c *StoredConfig) Index(values []interface{}, ctx *ProcessContext) []IndexError {
	for _, v := range values {
		s, err := stringify(v)
		if err != nil {
			return []IndexError{{Field: ctx.FieldName, Msg: err.Error()}}
		}
		ctx.Doc.Set(c.StoreField, s)
	}
	return nil
}

func (c *StoredConfig) Query(string, json.RawMessage) (queryast.Node, error) {
	return nil, rperrors.New(rperrors.KindInvalidValue, "cannot filter on stored-only field")
}

func (c *StoredConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{"type": "stored", "store_field": c.StoreField})
}

// IgnoreConfig configures a field that is entirely dropped.
type IgnoreConfig struct{}

func (c *IgnoreConfig) Type() string                                          { return "ignore" }
func (c *IgnoreConfig) Index([]interface{}, *ProcessContext) []IndexError     { return nil }
func (c *IgnoreConfig) Query(string, json.RawMessage) (queryast.Node, error) {
	return nil, rperrors.New(rperrors.KindInvalidValue, "cannot search on ignored field")
}
func (c *IgnoreConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{"type": "ignore"})
}

// MetaConfig configures the meta-field indexer, run once per document after
// every other field, using the accumulated field-presence map.
type MetaConfig struct {
	Prefix string
	Slot   uint32
}

func (c *MetaConfig) Type() string { return "meta" }

// Index for the meta field ignores its values argument; it reads
// ctx.Present instead, emitting "N"+field for non-empty fields and
// "M"+field for fields seen but empty.
func (c *MetaConfig) Index(_ []interface{}, ctx *ProcessContext) []IndexError {
	for field, nonEmpty := range ctx.Present {
		code := "M"
		if nonEmpty {
			code = "N"
		}
		ctx.AddTerm(c.Prefix+"\t"+code+field, 1)
		// Also index the bare, field-less presence term so a null-field
		// ("any field") query has something to match against; per-field
		// queries still use the field-suffixed term above.
		ctx.AddTerm(c.Prefix+"\t"+code, 1)
	}
	return nil
}

func (c *MetaConfig) Query(qtype string, params json.RawMessage) (queryast.Node, error) {
	var field *string
	if err := json.Unmarshal(params, &field); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid meta query params", err)
	}
	var code string
	switch qtype {
	case "exists":
		if field == nil {
			return queryast.Or{Children: []queryast.Node{
				queryast.Term{Value: c.Prefix + "\tN"},
				queryast.Term{Value: c.Prefix + "\tM"},
			}}, nil
		}
		return queryast.Or{Children: []queryast.Node{
			queryast.Term{Value: c.Prefix + "\tN" + *field},
			queryast.Term{Value: c.Prefix + "\tM" + *field},
		}}, nil
	case "nonempty":
		code = "N"
	case "empty":
		code = "M"
	default:
		return nil, rperrors.Invalidf("invalid query type %q for meta field", qtype)
	}
	if field == nil {
		return queryast.Term{Value: c.Prefix + "\t" + code}, nil
	}
	return queryast.Term{Value: c.Prefix + "\t" + code + *field}, nil
}

func (c *MetaConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":   "meta",
		"prefix": c.Prefix,
		"slot":   c.Slot,
	})
}

// --- dispatch ----------------------------------------------------------

// FieldConfigFromJSON parses a field config from its {"type": ..., ...}
// form, dispatching on the "type" member the way schema.cc's
// FieldConfig::from_json does.
func FieldConfigFromJSON(data json.RawMessage) (FieldConfig, error) {
	return fieldConfigFromJSON(data, "")
}

func fieldConfigFromJSON(data json.RawMessage, docType string) (FieldConfig, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "field configuration must be a JSON object", err)
	}
	switch head.Type {
	case "id":
		var body struct {
			MaxLength     int    `json:"max_length"`
			TooLongAction string `json:"too_long_action"`
			StoreField    string `json:"store_field"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		action, err := parseTooLongAction(body.TooLongAction)
		if err != nil {
			return nil, err
		}
		return &IDConfig{DocType: docType, MaxLength: body.MaxLength, TooLongAction: action, StoreField: body.StoreField}, nil
	case "exact":
		var body struct {
			Prefix        string `json:"prefix"`
			WDFInc        int    `json:"wdfinc"`
			MaxLength     int    `json:"max_length"`
			TooLongAction string `json:"too_long_action"`
			StoreField    string `json:"store_field"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		if body.Prefix == "" || strings.Contains(body.Prefix, "\t") {
			return nil, rperrors.New(rperrors.KindInvalidValue, "exact field prefix must be non-empty and tab-free")
		}
		action, err := parseTooLongAction(body.TooLongAction)
		if err != nil {
			return nil, err
		}
		return &ExactConfig{Prefix: body.Prefix, WDFInc: body.WDFInc, MaxLength: body.MaxLength, TooLongAction: action, StoreField: body.StoreField}, nil
	case "text":
		var body struct {
			Prefix     string `json:"prefix"`
			StoreField string `json:"store_field"`
			Processor  string `json:"processor"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		return &TextConfig{Prefix: body.Prefix, StoreField: body.StoreField, Processor: body.Processor}, nil
	case "date":
		var body struct {
			Slot       json.RawMessage `json:"slot"`
			StoreField string          `json:"store_field"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		slot, err := resolveSlot(body.Slot)
		if err != nil {
			return nil, err
		}
		return &DateConfig{Slot: slot, StoreField: body.StoreField}, nil
	case "timestamp":
		var body struct {
			Slot       json.RawMessage `json:"slot"`
			StoreField string          `json:"store_field"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		slot, err := resolveSlot(body.Slot)
		if err != nil {
			return nil, err
		}
		return &TimestampConfig{Slot: slot, StoreField: body.StoreField}, nil
	case "cat":
		var body struct {
			Prefix        string `json:"prefix"`
			Taxonomy      string `json:"taxonomy"`
			MaxLength     int    `json:"max_length"`
			TooLongAction string `json:"too_long_action"`
			StoreField    string `json:"store_field"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		if body.Prefix == "" || strings.Contains(body.Prefix, "\t") {
			return nil, rperrors.New(rperrors.KindInvalidValue, "cat field prefix must be non-empty and tab-free")
		}
		if body.Taxonomy == "" {
			body.Taxonomy = body.Prefix
		}
		action, err := parseTooLongAction(body.TooLongAction)
		if err != nil {
			return nil, err
		}
		return &CatConfig{Prefix: body.Prefix, Taxonomy: body.Taxonomy, MaxLength: body.MaxLength, TooLongAction: action, StoreField: body.StoreField}, nil
	case "stored":
		var body struct {
			StoreField string `json:"store_field"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		if body.StoreField == "" {
			return nil, rperrors.New(rperrors.KindInvalidValue, "stored field requires a non-empty store_field")
		}
		return &StoredConfig{StoreField: body.StoreField}, nil
	case "ignore":
		return &IgnoreConfig{}, nil
	case "meta":
		var body struct {
			Prefix string          `json:"prefix"`
			Slot   json.RawMessage `json:"slot"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		if body.Prefix == "" || strings.Contains(body.Prefix, "\t") {
			return nil, rperrors.New(rperrors.KindInvalidValue, "meta field prefix must be non-empty and tab-free")
		}
		slot, _ := resolveSlot(body.Slot)
		return &MetaConfig{Prefix: body.Prefix, Slot: slot}, nil
	default:
		return nil, rperrors.Invalidf("field configuration type %q is not supported", head.Type)
	}
}
