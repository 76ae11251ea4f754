package indexstore

import (
	"testing"

	"github.com/cuemby/restpose/pkg/matchspy"
	"github.com/cuemby/restpose/pkg/queryast"
	"github.com/cuemby/restpose/pkg/schema"
	"github.com/cuemby/restpose/pkg/slotcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, "widgets", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(idterm string, terms []string, slot uint32, slotValue []byte, data string) *schema.Document {
	t := make(map[string]int, len(terms))
	for _, term := range terms {
		t[term] = 1
	}
	slots := map[uint32][]byte{}
	if slotValue != nil {
		slots[slot] = slotValue
	}
	return &schema.Document{IDTerm: idterm, Terms: t, Slots: slots, Data: []byte(data)}
}

func TestAddGetCommitDocCount(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddDocument(doc("\twidget\tw1", []string{"XCOLOUR\tred"}, 1, slotcodec.EncodeSingle([]byte("red")), "w1-data")))
	require.NoError(t, s.Commit())

	n, err := s.GetDocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := s.GetDocument("\twidget\tw1")
	require.NoError(t, err)
	assert.Equal(t, "w1-data", string(data))
}

func TestAddDocumentRejectsDuplicateIDTerm(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddDocument(doc("\twidget\tw1", nil, 0, nil, "")))
	err := s.AddDocument(doc("\twidget\tw1", nil, 0, nil, ""))
	assert.Error(t, err)
}

func TestReplaceDocumentRemovesOldPostings(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddDocument(doc("\twidget\tw1", []string{"XCOLOUR\tred"}, 0, nil, "")))
	require.NoError(t, s.ReplaceDocument("\twidget\tw1", doc("\twidget\tw1", []string{"XCOLOUR\tblue"}, 0, nil, "")))
	require.NoError(t, s.Commit())

	matches, total, err := s.MSet(queryast.Term{Value: "XCOLOUR\tred"}, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, matches)

	matches, total, err = s.MSet(queryast.Term{Value: "XCOLOUR\tblue"}, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, matches, 1)
}

func TestDeleteDocument(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddDocument(doc("\twidget\tw1", []string{"XCOLOUR\tred"}, 0, nil, "")))
	require.NoError(t, s.DeleteDocument("\twidget\tw1"))
	require.NoError(t, s.Commit())

	n, err := s.GetDocCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetMetadata("_schema", []byte(`{"fields":{}}`)))
	require.NoError(t, s.Commit())

	data, err := s.GetMetadata("_schema")
	require.NoError(t, err)
	assert.Equal(t, `{"fields":{}}`, string(data))
}

func TestMSetAndQuery(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddDocument(doc("\twidget\tw1", []string{"XCOLOUR\tred", "XSIZE\tbig"}, 0, nil, "")))
	require.NoError(t, s.AddDocument(doc("\twidget\tw2", []string{"XCOLOUR\tred"}, 0, nil, "")))
	require.NoError(t, s.AddDocument(doc("\twidget\tw3", []string{"XCOLOUR\tblue"}, 0, nil, "")))
	require.NoError(t, s.Commit())

	query := queryast.And{Children: []queryast.Node{
		queryast.Term{Value: "XCOLOUR\tred"},
		queryast.Term{Value: "XSIZE\tbig"},
	}}
	items, total, err := s.MSet(query, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "\twidget\tw1", items[0].IDTerm)
}

func TestMSetPagination(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddDocument(doc(id, []string{"T"}, 0, nil, "")))
	}
	require.NoError(t, s.Commit())

	items, total, err := s.MSet(queryast.Term{Value: "T"}, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].IDTerm)
}

func TestMSetFeedsMatchSpies(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddDocument(doc("w1", []string{"T"}, 5, slotcodec.EncodeSingle([]byte("red")), "")))
	require.NoError(t, s.AddDocument(doc("w2", []string{"T"}, 5, slotcodec.EncodeSingle([]byte("blue")), "")))
	require.NoError(t, s.Commit())

	spy := matchspy.NewFacetCountSpy(5, slotcodec.Single, 0, 10, true)
	_, total, err := s.MSet(queryast.Term{Value: "T"}, 0, 10, []matchspy.Spy{spy})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, spy.Result()["docs_seen"])
}

func TestValueRangeQuery(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddDocument(doc("w1", nil, 2, slotcodec.EncodeSingle([]byte("b")), "")))
	require.NoError(t, s.AddDocument(doc("w2", nil, 2, slotcodec.EncodeSingle([]byte("d")), "")))
	require.NoError(t, s.AddDocument(doc("w3", nil, 2, slotcodec.EncodeSingle([]byte("f")), "")))
	require.NoError(t, s.Commit())

	items, total, err := s.MSet(queryast.ValueRange{Slot: 2, Low: []byte("c"), High: []byte("e")}, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "w2", items[0].IDTerm)
}

func TestOpenReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	writable, err := Open(dir, "widgets", true)
	require.NoError(t, err)
	require.NoError(t, writable.AddDocument(doc("w1", nil, 0, nil, "")))
	require.NoError(t, writable.Commit())
	require.NoError(t, writable.Close())

	ro, err := Open(dir, "widgets", false)
	require.NoError(t, err)
	defer ro.Close()

	err = ro.AddDocument(doc("w2", nil, 0, nil, ""))
	assert.Error(t, err)

	n, err := ro.GetDocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
