package task

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/resulthandle"
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/schema"
	"github.com/stretchr/testify/require"
)

func openTestCollection(t *testing.T) *collection.Collection {
	t.Helper()
	dir := t.TempDir()
	c, err := collection.Open(dir, "widgets", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	s := c.SchemaFor("widget")
	s.Set("id", &schema.IDConfig{DocType: "widget", StoreField: "id"})
	s.Set("colour", &schema.ExactConfig{Prefix: "XCOLOUR", WDFInc: 1, StoreField: "colour"})
	return c
}

type fakeEnqueuer struct {
	indexed     []string
	checkpoints []uint64
}

func (f *fakeEnqueuer) QueueIndexProcessedDoc(collName string, doc *schema.Document, idterm string) error {
	f.indexed = append(f.indexed, idterm)
	return nil
}

func (f *fakeEnqueuer) QueueCheckpointReached(collName string, checkpoints *checkpoint.Registry, id uint64) error {
	f.checkpoints = append(f.checkpoints, id)
	return nil
}

func TestProcessDocumentTaskForwardsToEnqueuer(t *testing.T) {
	c := openTestCollection(t)
	enq := &fakeEnqueuer{}
	pt := &ProcessDocumentTask{CollName: "widgets", DocType: "widget", Value: json.RawMessage(`{"id":"w1","colour":"red"}`)}
	require.NoError(t, pt.Perform(c, enq))
	require.Equal(t, []string{"\twidget\tw1"}, enq.indexed)
}

func TestIndexDocumentTaskCloneIsIndependent(t *testing.T) {
	orig := &IndexDocumentTask{IDTerm: "\twidget\tw1", Doc: &schema.Document{IDTerm: "\twidget\tw1"}}
	clone := orig.Clone().(*IndexDocumentTask)
	clone.IDTerm = "\twidget\tw2"
	require.Equal(t, "\twidget\tw1", orig.IDTerm)
	require.Equal(t, "\twidget\tw2", clone.IDTerm)
}

func TestIndexAndCommitTasksAgainstCollection(t *testing.T) {
	c := openTestCollection(t)
	doc, err := c.ProcessDoc("widget", json.RawMessage(`{"id":"w1","colour":"red"}`))
	require.NoError(t, err)

	idx := &IndexDocumentTask{IDTerm: doc.IDTerm, Doc: doc}
	require.NoError(t, idx.Perform(c))

	commit := &CommitTask{}
	require.NoError(t, commit.Perform(c))

	n, err := c.DocCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCheckpointReachedTaskMarksRegistry(t *testing.T) {
	c := openTestCollection(t)
	reg := checkpoint.NewRegistry()
	id := reg.Alloc()
	reg.Publish(id)

	cr := &CheckpointReachedTask{Checkpoints: reg, ID: id}
	require.NoError(t, cr.Perform(c))

	cp, ok := reg.Get(id)
	require.True(t, ok)
	require.Equal(t, checkpoint.StatusReached, cp.Status)
}

func TestRunAppendsCheckpointErrorAndSetsResponse(t *testing.T) {
	reg := checkpoint.NewRegistry()
	id := reg.Alloc()
	reg.Publish(id)

	result := resulthandle.New(nil)
	Run(reg, "widget", "w1", result, func() error {
		return rperrors.Invalidf("bad document")
	})

	require.True(t, result.IsReady())
	require.Equal(t, 400, result.Response().Status)

	cp, _ := reg.Get(id)
	require.Len(t, cp.Errors, 1)
	require.Equal(t, "widget", cp.Errors[0].DocType)
	require.Equal(t, "w1", cp.Errors[0].DocID)
}

func TestRunRecoversPanic(t *testing.T) {
	result := resulthandle.New(nil)
	Run(nil, "", "", result, func() error {
		panic("boom")
	})
	require.True(t, result.IsReady())
	require.Equal(t, 500, result.Response().Status)
}

func TestErrorResponseMapsKinds(t *testing.T) {
	require.Equal(t, 400, ErrorResponse(rperrors.Invalidf("x")).Status)
	require.Equal(t, 503, ErrorResponse(rperrors.New(rperrors.KindOutOfMemory, "x")).Status)
	require.Equal(t, 500, ErrorResponse(rperrors.New(rperrors.KindSystem, "x")).Status)
	require.Equal(t, 500, ErrorResponse(errors.New("plain")).Status)
}
