package schema

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/restpose/pkg/queryast"
	"github.com/cuemby/restpose/pkg/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessIDField(t *testing.T) {
	s := New()
	s.Set("id", &IDConfig{DocType: "widget", MaxLength: 64, TooLongAction: TooLongError})

	doc, err := s.Process("widget", json.RawMessage(`{"id": "w1"}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Errors)
	assert.Equal(t, "\twidget\tw1", doc.IDTerm)
}

func TestProcessIDFieldRejectsMultipleValues(t *testing.T) {
	s := New()
	s.Set("id", &IDConfig{DocType: "widget", MaxLength: 64})

	doc, err := s.Process("widget", json.RawMessage(`{"id": ["a", "b"]}`))
	require.NoError(t, err)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "id", doc.Errors[0].Field)
}

func TestProcessExactFieldEmitsTerms(t *testing.T) {
	s := New()
	s.Set("colour", &ExactConfig{Prefix: "XCOLOUR", MaxLength: 64})

	doc, err := s.Process("widget", json.RawMessage(`{"colour": ["red", "blue"]}`))
	require.NoError(t, err)
	assert.Contains(t, doc.Terms, "XCOLOUR\tred")
	assert.Contains(t, doc.Terms, "XCOLOUR\tblue")
}

func TestProcessRejectsMetaFieldAssignment(t *testing.T) {
	s := New()
	doc, err := s.Process("widget", json.RawMessage(`{"meta": "x"}`))
	require.NoError(t, err)
	require.Len(t, doc.Errors, 1)
	assert.Contains(t, doc.Errors[0].Msg, "reserved")
}

func TestProcessMetaFieldRunsLastWithPresenceMap(t *testing.T) {
	s := New()
	s.Set("id", &IDConfig{DocType: "widget", MaxLength: 64})
	s.Set("title", &ExactConfig{Prefix: "XTITLE", MaxLength: 64})
	s.Set("meta", &MetaConfig{Prefix: "\tmeta"})

	doc, err := s.Process("widget", json.RawMessage(`{"id": "w1", "title": "Widget"}`))
	require.NoError(t, err)
	assert.Contains(t, doc.Terms, "\tmeta\tNid")
	assert.Contains(t, doc.Terms, "\tmeta\tNtitle")
}

func TestProcessCatFieldEmitsAncestorTerms(t *testing.T) {
	tax := taxonomy.New("colours")
	modified := taxonomy.NewModifiedSet()
	tax.Add("red", modified)
	tax.Add("warm", modified)
	require.NoError(t, tax.AddParent("red", "warm", modified))

	s := New()
	s.Set("colour", &CatConfig{
		Prefix:   "XCAT",
		Taxonomy: "colours",
		Taxonomies: func(name string) (*taxonomy.Taxonomy, error) {
			return tax, nil
		},
	})

	doc, err := s.Process("widget", json.RawMessage(`{"colour": "red"}`))
	require.NoError(t, err)
	assert.Contains(t, doc.Terms, "XCAT\tCred")
	assert.Contains(t, doc.Terms, "XCAT\tAred")
	assert.Contains(t, doc.Terms, "XCAT\tAwarm")
}

func TestAutoConfigureFromPatternSubstitutesStar(t *testing.T) {
	s := New()
	s.SetPatterns([]Pattern{
		{Match: "*_exact", Template: json.RawMessage(`{"type": "exact", "prefix": "X*", "max_length": 64}`)},
	})

	doc, err := s.Process("widget", json.RawMessage(`{"colour_exact": "red"}`))
	require.NoError(t, err)
	assert.Contains(t, doc.Terms, "Xcolour\tred")

	cfg := s.Get("colour_exact")
	require.NotNil(t, cfg)
	assert.Equal(t, "exact", cfg.Type())
}

func TestMergeFromRejectsIncompatibleConfig(t *testing.T) {
	a := New()
	a.Set("title", &ExactConfig{Prefix: "XTITLE", MaxLength: 64})
	b := New()
	b.Set("title", &ExactConfig{Prefix: "XTITLE", MaxLength: 32})

	err := a.MergeFrom(b)
	assert.Error(t, err)
}

func TestMergeFromAcceptsIdenticalConfig(t *testing.T) {
	a := New()
	a.Set("title", &ExactConfig{Prefix: "XTITLE", MaxLength: 64})
	b := New()
	b.Set("title", &ExactConfig{Prefix: "XTITLE", MaxLength: 64})
	b.Set("body", &StoredConfig{StoreField: "body"})

	require.NoError(t, a.MergeFrom(b))
	assert.NotNil(t, a.Get("body"))
}

func TestMergeFromReplacesPatternsWholesale(t *testing.T) {
	a := New()
	a.SetPatterns([]Pattern{{Match: "old", Template: json.RawMessage(`{"type": "ignore"}`)}})
	b := New()
	b.SetPatterns([]Pattern{{Match: "new", Template: json.RawMessage(`{"type": "ignore"}`)}})

	require.NoError(t, a.MergeFrom(b))
	require.Len(t, a.Patterns(), 1)
	assert.Equal(t, "new", a.Patterns()[0].Match)
}

func TestSchemaJSONRoundTrip(t *testing.T) {
	s := New()
	s.Set("id", &IDConfig{DocType: "widget", MaxLength: 64, TooLongAction: TooLongError})
	s.Set("title", &ExactConfig{Prefix: "XTITLE", MaxLength: 64, StoreField: "title"})
	s.SetPatterns([]Pattern{{Match: "*_exact", Template: json.RawMessage(`{"type":"exact","prefix":"X*","max_length":64}`)}})

	data, err := s.ToJSON()
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)

	data2, err := back.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}

func TestProcessIDFieldPreservesLargeIntegerPrecision(t *testing.T) {
	s := New()
	s.Set("id", &IDConfig{DocType: "widget", MaxLength: 64, TooLongAction: TooLongError})

	doc, err := s.Process("widget", json.RawMessage(`{"id": 18446744073709551615}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Errors)
	assert.Equal(t, "\twidget\t18446744073709551615", doc.IDTerm)
}

func TestProcessIDFieldNumericAndStringAgree(t *testing.T) {
	s := New()
	s.Set("id", &IDConfig{DocType: "widget", MaxLength: 64, TooLongAction: TooLongError})

	numeric, err := s.Process("widget", json.RawMessage(`{"id": 32}`))
	require.NoError(t, err)
	str, err := s.Process("widget", json.RawMessage(`{"id": "32"}`))
	require.NoError(t, err)
	assert.Equal(t, numeric.IDTerm, str.IDTerm)
}

func TestMetaQueryNullFieldMatchesAnyFieldPresence(t *testing.T) {
	s := New()
	s.Set("id", &IDConfig{DocType: "widget", MaxLength: 64})
	s.Set("title", &ExactConfig{Prefix: "XTITLE", MaxLength: 64})
	meta := &MetaConfig{Prefix: "\tmeta"}
	s.Set("meta", meta)

	doc, err := s.Process("widget", json.RawMessage(`{"id": "w1", "title": "Widget"}`))
	require.NoError(t, err)

	node, err := meta.Query("nonempty", json.RawMessage(`null`))
	require.NoError(t, err)
	term, ok := node.(queryast.Term)
	require.True(t, ok)
	assert.Contains(t, doc.Terms, term.Value)

	node, err = meta.Query("exists", json.RawMessage(`null`))
	require.NoError(t, err)
	or, ok := node.(queryast.Or)
	require.True(t, ok)
	matched := false
	for _, child := range or.Children {
		if term, ok := child.(queryast.Term); ok {
			if _, present := doc.Terms[term.Value]; present {
				matched = true
			}
		}
	}
	assert.True(t, matched, "null-field exists query should match a document with at least one present field")
}
