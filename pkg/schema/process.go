package schema

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/restpose/pkg/docdata"
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/slotcodec"
)

// ProcessContext accumulates the output of processing one document: the
// identity term, postings list (term -> wdf), slot values, stored field
// data, and the field-presence map the meta indexer reads.
type ProcessContext struct {
	// FieldName is set by Process before invoking each field's Index, so
	// error messages and the meta indexer's presence map can name it.
	FieldName string

	IDTerm string
	Terms  map[string]int
	Slots  map[uint32][][]byte
	Doc    *docdata.Data

	// Present maps every field name seen during processing to whether it
	// produced at least one value (false means the field was present but
	// empty, e.g. an empty array).
	Present map[string]bool
}

func newProcessContext() *ProcessContext {
	return &ProcessContext{
		Terms:   make(map[string]int),
		Slots:   make(map[uint32][][]byte),
		Doc:     docdata.New(),
		Present: make(map[string]bool),
	}
}

// AddTerm increments a posting's wdf by inc, creating it if necessary.
func (ctx *ProcessContext) AddTerm(term string, inc int) {
	ctx.Terms[term] += inc
}

// SetSlot appends an encoded value to a slot's value list (most fields emit
// exactly one, but the slot is multi-valued to support repeated
// date/timestamp fields uniformly).
func (ctx *ProcessContext) SetSlot(slot uint32, encoded []byte) {
	ctx.Slots[slot] = append(ctx.Slots[slot], encoded)
}

// MarkPresent records that the current field produced output, for the meta
// indexer's presence map. A field invoked with zero values is marked
// present-but-empty by Process once Index returns.
func (ctx *ProcessContext) MarkPresent(field string) {
	ctx.Present[field] = true
}

// Document is the result of Schema.Process: an identity term, postings,
// encoded slot values, and a serialized stored-data blob, plus any non-fatal
// per-field errors encountered along the way.
type Document struct {
	IDTerm string
	Terms  map[string]int
	Slots  map[uint32][]byte
	Data   []byte
	Errors []IndexError
}

// Process implements spec §4.4's process(value, collconfig, out_idterm,
// out_errors) → document. docType identifies the owning document type, used
// by the id field's indexer to build its prefix.
func (s *Schema) Process(docType string, value json.RawMessage) (*Document, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "document must be a JSON object", err)
	}

	ctx := newProcessContext()

	fields := make([]string, 0, len(obj))
	for name := range obj {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var errs []IndexError
	var metaConfig FieldConfig

	for _, name := range fields {
		if name == MetaFieldName {
			errs = append(errs, IndexError{Field: name, Msg: "cannot assign to the reserved meta field"})
			continue
		}

		cfg := s.Get(name)
		if cfg == nil {
			var err error
			cfg, err = s.autoConfigure(name)
			if err != nil {
				errs = append(errs, IndexError{Field: name, Msg: err.Error()})
				continue
			}
			if cfg == nil {
				errs = append(errs, IndexError{Field: name, Msg: "no field configuration and no matching pattern"})
				continue
			}
		}
		if idCfg, ok := cfg.(*IDConfig); ok && idCfg.DocType != docType {
			idCfg = &IDConfig{DocType: docType, MaxLength: idCfg.MaxLength, TooLongAction: idCfg.TooLongAction, StoreField: idCfg.StoreField}
			cfg = idCfg
		}

		if _, ok := cfg.(*MetaConfig); ok {
			metaConfig = cfg
			continue
		}

		values, err := wrapAsArray(obj[name])
		if err != nil {
			errs = append(errs, IndexError{Field: name, Msg: err.Error()})
			continue
		}

		ctx.FieldName = name
		ctx.MarkPresent(name)
		storedBefore := ctx.Doc.Len()
		fieldErrs := cfg.Index(values, ctx)
		// Indexers record a store field from the value's text form; the
		// stored data keeps the field's raw JSON fragment instead.
		for _, f := range ctx.Doc.Fields()[storedBefore:] {
			ctx.Doc.Set(f, string(obj[name]))
		}
		if len(values) == 0 {
			ctx.Present[name] = false
		}
		errs = append(errs, fieldErrs...)
	}

	if metaConfig == nil {
		if cfg := s.Get(MetaFieldName); cfg != nil {
			metaConfig = cfg
		}
	}
	if metaConfig != nil {
		ctx.FieldName = MetaFieldName
		errs = append(errs, metaConfig.Index(nil, ctx)...)
	}

	slots := make(map[uint32][]byte, len(ctx.Slots))
	for slot, values := range ctx.Slots {
		if len(values) == 1 {
			slots[slot] = slotcodec.EncodeSingle(values[0])
		} else {
			slots[slot] = slotcodec.EncodeVintMulti(values)
		}
	}

	return &Document{
		IDTerm: ctx.IDTerm,
		Terms:  ctx.Terms,
		Slots:  slots,
		Data:   ctx.Doc.Serialize(),
		Errors: errs,
	}, nil
}

// wrapAsArray implements "a non-array value is wrapped in a one-element
// array before being handed to the indexer."
func wrapAsArray(raw json.RawMessage) ([]interface{}, error) {
	var arr []interface{}
	if err := decodeJSONNumber(raw, &arr); err == nil {
		return arr, nil
	}
	var single interface{}
	if err := decodeJSONNumber(raw, &single); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid field value", err)
	}
	return []interface{}{single}, nil
}
