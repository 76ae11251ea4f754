// Package collection implements spec §4.8: a named, durable inverted-index
// database, owning its per-type Schemas and named Taxonomies, plus the
// CollectionPool that leases Collections by name with multi-reader/
// single-writer discipline.
//
// Grounded on cuemby-warren's pkg/storage layer for the open/commit/close
// shape and on schema.cc/category_hierarchy.cc for what a collection's
// persisted configuration carries (the schema-per-type plus the taxonomy
// registry, serialised verbatim as JSON into the backend's "_schema"
// metadata slot, per spec §6.4). One deliberate simplification from true
// Xapian-style MVCC: bbolt allows exactly one *bolt.DB per file within a
// process, so a Collection holds a single indexstore.Store instance shared
// by readers and the writer, with a sync.RWMutex standing in for the
// backend's "concurrent readers of last-committed state, serialized
// writes" guarantee. Readers therefore block behind an in-flight write
// rather than seeing a stale snapshot; everything else about the contract
// (single-writer-per-collection, commit as an explicit boundary) matches
// spec §4.8 exactly.
package collection

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/cuemby/restpose/pkg/docdata"
	"github.com/cuemby/restpose/pkg/indexstore"
	"github.com/cuemby/restpose/pkg/matchspy"
	"github.com/cuemby/restpose/pkg/querybuilder"
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/schema"
	"github.com/cuemby/restpose/pkg/slotcodec"
	"github.com/cuemby/restpose/pkg/taxonomy"
)

// MetaFieldDefault is the meta-field name a freshly created collection
// uses when its configuration doesn't say otherwise.
const MetaFieldDefault = schema.MetaFieldName

// metadataKey is the backend metadata slot the collection's configuration
// (schemas + taxonomies + meta-field name) is stored under, per spec §6.4.
const metadataKey = "_schema"

// persistedConfig is the on-disk JSON form of a collection's configuration.
type persistedConfig struct {
	MetaField  string                     `json:"meta_field"`
	Types      map[string]json.RawMessage `json:"types"`
	Taxonomies map[string]json.RawMessage `json:"taxonomies"`
	Pipes      map[string]string          `json:"pipes,omitempty"`
}

// Collection owns one backend index database plus its document-type
// Schemas and named Taxonomies.
type Collection struct {
	Name string

	store *indexstore.Store
	mu    sync.RWMutex // guards store access: RLock for reads, Lock for mutations

	cfgMu      sync.Mutex
	metaField  string
	schemas    map[string]*schema.Schema
	taxonomies map[string]*taxonomy.Taxonomy
	pipes      map[string]string
}

// Open opens (creating if absent) the collection named name under dir,
// loading its persisted configuration from the backend's metadata slot, if
// any. writable controls whether the backing store holds a write
// transaction; a Collection opened non-writable rejects mutating
// operations.
func Open(dir, name string, writable bool) (*Collection, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rperrors.Wrap(rperrors.KindSystem, "failed to create data directory", err)
	}
	store, err := indexstore.Open(dir, name, writable)
	if err != nil {
		return nil, err
	}
	c := &Collection{
		Name:       name,
		store:      store,
		metaField:  MetaFieldDefault,
		schemas:    make(map[string]*schema.Schema),
		taxonomies: make(map[string]*taxonomy.Taxonomy),
	}
	if err := c.loadConfig(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the collection's underlying store.
func (c *Collection) Close() error {
	return c.store.Close()
}

func (c *Collection) loadConfig() error {
	raw, err := c.store.GetMetadata(metadataKey)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	var cfg persistedConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return rperrors.Wrap(rperrors.KindUnserialization, "corrupt collection configuration", err)
	}

	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()

	if cfg.MetaField != "" {
		c.metaField = cfg.MetaField
	}
	if cfg.Pipes != nil {
		c.pipes = cfg.Pipes
	}
	for tname, tdata := range cfg.Taxonomies {
		tax, err := taxonomy.FromJSON(tname, tdata)
		if err != nil {
			return rperrors.Wrapf(rperrors.KindUnserialization, err, "taxonomy %q", tname)
		}
		c.taxonomies[tname] = tax
	}
	for typeName, sdata := range cfg.Types {
		s, err := schema.FromJSON(sdata)
		if err != nil {
			return rperrors.Wrapf(rperrors.KindUnserialization, err, "schema for type %q", typeName)
		}
		c.bindTaxonomyResolver(s)
		c.schemas[typeName] = s
	}
	return nil
}

// saveConfigLocked serializes the collection's current configuration into
// the backend metadata slot. Must be called with the store writable and
// c.mu already held for writing.
func (c *Collection) saveConfigLocked() error {
	c.cfgMu.Lock()
	cfg := persistedConfig{
		MetaField:  c.metaField,
		Types:      make(map[string]json.RawMessage, len(c.schemas)),
		Taxonomies: make(map[string]json.RawMessage, len(c.taxonomies)),
		Pipes:      c.pipes,
	}
	for typeName, s := range c.schemas {
		data, err := s.ToJSON()
		if err != nil {
			c.cfgMu.Unlock()
			return rperrors.Wrap(rperrors.KindInvalidValue, "failed to serialize schema", err)
		}
		cfg.Types[typeName] = data
	}
	for tname, tax := range c.taxonomies {
		data, err := tax.ToJSON()
		if err != nil {
			c.cfgMu.Unlock()
			return rperrors.Wrap(rperrors.KindInvalidValue, "failed to serialize taxonomy", err)
		}
		cfg.Taxonomies[tname] = data
	}
	c.cfgMu.Unlock()

	data, err := json.Marshal(cfg)
	if err != nil {
		return rperrors.Wrap(rperrors.KindInvalidValue, "failed to serialize collection configuration", err)
	}
	return c.store.SetMetadata(metadataKey, data)
}

// bindTaxonomyResolver wires s's cat fields to this collection's taxonomy
// registry. Must be called with c.cfgMu held.
func (c *Collection) bindTaxonomyResolver(s *schema.Schema) {
	s.SetTaxonomyResolver(func(name string) (*taxonomy.Taxonomy, error) {
		c.cfgMu.Lock()
		defer c.cfgMu.Unlock()
		tax, ok := c.taxonomies[name]
		if !ok {
			return nil, rperrors.Invalidf("unknown taxonomy %q", name)
		}
		return tax, nil
	})
}

// SchemaFor returns the schema for docType, creating an empty one (wired to
// this collection's taxonomy registry) on first use, matching the original's
// "unknown type gets an empty schema" behaviour.
func (c *Collection) SchemaFor(docType string) *schema.Schema {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	if s, ok := c.schemas[docType]; ok {
		return s
	}
	s := schema.New()
	c.bindTaxonomyResolver(s)
	c.schemas[docType] = s
	return s
}

// Schemas returns a snapshot of every document type's schema, keyed by
// type name, for building a collection-wide query.
func (c *Collection) Schemas() map[string]*schema.Schema {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	out := make(map[string]*schema.Schema, len(c.schemas))
	for k, v := range c.schemas {
		out[k] = v
	}
	return out
}

// Taxonomy returns the named taxonomy, creating an empty one if absent.
func (c *Collection) Taxonomy(name string) *taxonomy.Taxonomy {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	tax, ok := c.taxonomies[name]
	if !ok {
		tax = taxonomy.New(name)
		c.taxonomies[name] = tax
	}
	return tax
}

// MetaField returns the configured meta-field name.
func (c *Collection) MetaField() string {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return c.metaField
}

// DocCount returns the number of indexed documents.
func (c *Collection) DocCount() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetDocCount()
}

// RawUpdateDoc replaces (or inserts) the document stored under idterm, per
// raw_update_doc → replace_document(idterm, doc).
func (c *Collection) RawUpdateDoc(idterm string, doc *schema.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ReplaceDocument(idterm, toIndexDoc(idterm, doc))
}

// RawDeleteDoc deletes the document stored under idterm, per
// raw_delete_doc → delete_document(idterm). A no-op if idterm is absent.
func (c *Collection) RawDeleteDoc(idterm string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.DeleteDocument(idterm)
}

// toIndexDoc adapts a schema.Document (the output of Schema.Process) into
// the shape indexstore.Store persists.
func toIndexDoc(idterm string, doc *schema.Document) *schema.Document {
	if doc.IDTerm == "" {
		doc.IDTerm = idterm
	}
	return doc
}

// ProcessDoc runs docType's schema over value, per process_doc(type,
// jsonval, &idterm). It does not touch the backend; the caller (a
// processing task) is responsible for forwarding the result on to an
// indexing task.
func (c *Collection) ProcessDoc(docType string, value json.RawMessage) (*schema.Document, error) {
	s := c.SchemaFor(docType)
	doc, err := s.Process(docType, value)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SetPipe configures pipeName to route through docType's schema, per
// send_to_pipe's notion of a named ingestion pipe distinct from the
// document type it eventually produces.
func (c *Collection) SetPipe(pipeName, docType string) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	if c.pipes == nil {
		c.pipes = make(map[string]string)
	}
	c.pipes[pipeName] = docType
}

// ResolvePipe returns the document type pipeName routes to. A pipe with no
// explicit mapping routes to a document type of the same name, matching the
// original's pipe-configuration-is-optional behaviour.
func (c *Collection) ResolvePipe(pipeName string) string {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	if docType, ok := c.pipes[pipeName]; ok {
		return docType
	}
	return pipeName
}

// SendToPipe runs value through pipeName's configured document type schema,
// per send_to_pipe(taskman, pipe_name, jsonval). Like ProcessDoc, it leaves
// forwarding the result to an indexing task to the caller.
func (c *Collection) SendToPipe(pipeName string, value json.RawMessage) (*schema.Document, error) {
	return c.ProcessDoc(c.ResolvePipe(pipeName), value)
}

// Commit durably applies every pending write and persists the collection's
// configuration (schemas may have gained auto-configured fields since the
// last commit), per commit.
func (c *Collection) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.saveConfigLocked(); err != nil {
		return err
	}
	return c.store.Commit()
}

// GetDocument returns the stored field data for idterm as a decoded
// field-name -> JSON-fragment map, or nil if idterm is absent.
func (c *Collection) GetDocument(idterm string) (map[string]json.RawMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, err := c.store.GetDocument(idterm)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodeStoredData(raw)
}

// PerformSearch runs req against docType's schema (or, if docType is empty,
// every document type's schema ORed together), per perform_search.
func (c *Collection) PerformSearch(docType string, req *querybuilder.SearchRequest) (*querybuilder.SearchResponse, error) {
	var builder *querybuilder.Builder
	var resolver func(field string) []schemaFieldLookup
	if docType != "" {
		s := c.SchemaFor(docType)
		builder = querybuilder.NewTypeBuilder(s)
		resolver = func(field string) []schemaFieldLookup {
			if cfg := s.Get(field); cfg != nil {
				return []schemaFieldLookup{{schema: s, field: field}}
			}
			return nil
		}
	} else {
		schemas := c.Schemas()
		builder = querybuilder.NewCollectionBuilder(schemas)
		resolver = func(field string) []schemaFieldLookup {
			var out []schemaFieldLookup
			for _, s := range schemas {
				if cfg := s.Get(field); cfg != nil {
					out = append(out, schemaFieldLookup{schema: s, field: field})
				}
			}
			return out
		}
	}

	query, err := builder.Build(req.Query)
	if err != nil {
		return nil, err
	}

	spies, infoResults, err := c.buildSpies(req.Info, resolver)
	if err != nil {
		return nil, err
	}

	size := req.Size
	if size == querybuilder.AllDocuments {
		size = -1
	}

	c.mu.RLock()
	items, total, err := c.store.MSet(query, req.From, size, spies)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	displayItems, err := buildDisplayItems(items, req.Display)
	if err != nil {
		return nil, err
	}

	for i, spy := range spies {
		infoResults[i] = spy.Result()
	}

	// The backend always counts exactly (no sampling mode), so the match
	// bounds collapse to the single true total regardless of checkatleast.
	bounds := querybuilder.MatchBounds{LowerBound: total, Estimated: total, UpperBound: total}

	return &querybuilder.SearchResponse{
		From:         req.From,
		Size:         req.Size,
		CheckAtLeast: req.CheckAtLeast,
		MatchBounds:  bounds,
		Items:        displayItems,
		Info:         infoResults,
	}, nil
}

// schemaFieldLookup names one (schema, field) pair a facet-count spy's
// field resolved against, so SlotOf can be consulted per document type.
type schemaFieldLookup struct {
	schema *schema.Schema
	field  string
}

// facetCountRequest is the {type, field, doc_limit, result_limit} shape a
// search request's info array may carry, per spec §4.7.
type facetCountRequest struct {
	Type        string `json:"type"`
	Field       string `json:"field"`
	DocLimit    int    `json:"doc_limit"`
	ResultLimit int    `json:"result_limit"`
}

// buildSpies parses req.Info into match spies. A facet-count spy whose
// field never resolves to a slot is still installed, unresolved, so the
// response shape stays stable (spec §4.7).
func (c *Collection) buildSpies(infoRaw []json.RawMessage, resolve func(string) []schemaFieldLookup) ([]matchspy.Spy, []interface{}, error) {
	spies := make([]matchspy.Spy, len(infoRaw))
	results := make([]interface{}, len(infoRaw))
	for i, raw := range infoRaw {
		var req facetCountRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid info spy request", err)
		}
		switch req.Type {
		case "facetcount":
			slot, format, resolved := resolveSlot(resolve(req.Field))
			spies[i] = matchspy.NewFacetCountSpy(slot, format, req.DocLimit, req.ResultLimit, resolved)
		default:
			return nil, nil, rperrors.Invalidf("unrecognized info spy type %q", req.Type)
		}
	}
	return spies, results, nil
}

func resolveSlot(lookups []schemaFieldLookup) (slot uint32, format slotcodec.Format, ok bool) {
	for _, l := range lookups {
		cfg := l.schema.Get(l.field)
		if cfg == nil {
			continue
		}
		if s, f, found := schema.SlotOf(cfg); found {
			return s, f, true
		}
	}
	return 0, slotcodec.Single, false
}

// buildDisplayItems filters each match's stored data down to the requested
// display fields, defaulting to every stored field, per spec §4.6.
func buildDisplayItems(items []indexstore.MatchResult, display []string) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		decoded, err := decodeStoredData(item.Data)
		if err != nil {
			return nil, err
		}
		fields := display
		if len(fields) == 0 {
			fields = make([]string, 0, len(decoded))
			for name := range decoded {
				fields = append(fields, name)
			}
		}
		obj := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			raw, ok := decoded[f]
			if !ok {
				// A display field absent from the stored data (never
				// stored, or not present on this document) is silently
				// omitted rather than erroring, per spec §9's resolution
				// of the "non-stored display field" open question.
				continue
			}
			var v interface{}
			_ = json.Unmarshal(raw, &v)
			obj[f] = v
		}
		out = append(out, obj)
	}
	return out, nil
}

func decodeStoredData(blob []byte) (map[string]json.RawMessage, error) {
	data, err := docdata.Deserialize(blob)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	data.Each(func(field, value string) {
		out[field] = json.RawMessage(value)
	})
	return out, nil
}
