package workerpool

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/resulthandle"
	"github.com/cuemby/restpose/pkg/schema"
	"github.com/cuemby/restpose/pkg/task"
	"github.com/stretchr/testify/require"
)

func openTestPool(t *testing.T) (*collection.Pool, string) {
	t.Helper()
	dir := t.TempDir()
	pool := collection.NewPool(dir)
	t.Cleanup(func() { _ = pool.Close() })

	c, err := pool.GetWritable("widgets")
	require.NoError(t, err)
	s := c.SchemaFor("widget")
	s.Set("id", &schema.IDConfig{DocType: "widget", StoreField: "id"})
	s.Set("colour", &schema.ExactConfig{Prefix: "XCOLOUR", WDFInc: 1, StoreField: "colour"})
	require.NoError(t, c.Commit())
	pool.ReleaseWritable("widgets")
	return pool, "widgets"
}

type fakeEnqueuer struct {
	indexed []string
}

func (f *fakeEnqueuer) QueueIndexProcessedDoc(collName string, doc *schema.Document, idterm string) error {
	f.indexed = append(f.indexed, idterm)
	return nil
}

func (f *fakeEnqueuer) QueueCheckpointReached(collName string, checkpoints *checkpoint.Registry, id uint64) error {
	return nil
}

func TestSearchPoolRunsReadOnlyJob(t *testing.T) {
	pool, name := openTestPool(t)

	c, err := pool.GetWritable(name)
	require.NoError(t, err)
	doc, err := c.ProcessDoc("widget", json.RawMessage(`{"id":"w1","colour":"red"}`))
	require.NoError(t, err)
	require.NoError(t, c.RawUpdateDoc(doc.IDTerm, doc))
	require.NoError(t, c.Commit())
	pool.ReleaseWritable(name)

	group := queuegroup.New(10, 20, nil)
	result := resulthandle.New(nil)
	job := &ReadOnlyJob{
		Task:     &task.GetDocumentTask{IDTerm: doc.IDTerm},
		CollName: name,
		Result:   result,
	}
	require.Equal(t, queuegroup.HasSpace, group.Push(name, job, false, time.Time{}))
	group.Close()

	p := SearchPool(1, group, pool)
	p.Wait()

	require.True(t, result.IsReady())
	require.Equal(t, 200, result.Response().Status)
}

func TestProcessingPoolForwardsToEnqueuer(t *testing.T) {
	pool, name := openTestPool(t)
	enq := &fakeEnqueuer{}

	group := queuegroup.New(10, 20, nil)
	job := &ProcessingJob{
		Task:     &task.ProcessDocumentTask{CollName: name, DocType: "widget", Value: json.RawMessage(`{"id":"w1","colour":"red"}`)},
		CollName: name,
	}
	require.Equal(t, queuegroup.HasSpace, group.Push(name, job, false, time.Time{}))
	group.Close()

	p := ProcessingPool(1, group, pool, enq)
	p.Wait()

	require.Equal(t, []string{"\twidget\tw1"}, enq.indexed)
}

func TestIndexingPoolCommitsOnDrain(t *testing.T) {
	pool, name := openTestPool(t)

	c, err := pool.GetWritable(name)
	require.NoError(t, err)
	doc, err := c.ProcessDoc("widget", json.RawMessage(`{"id":"w1","colour":"red"}`))
	require.NoError(t, err)
	pool.ReleaseWritable(name)

	group := queuegroup.New(10, 20, nil)
	job := &IndexingJob{Task: &task.IndexDocumentTask{IDTerm: doc.IDTerm, Doc: doc}, DocID: doc.IDTerm}
	require.Equal(t, queuegroup.HasSpace, group.Push(name, job, false, time.Time{}))
	group.Close()

	p := IndexingPool(1, group, pool, 50*time.Millisecond)
	p.Wait()

	n, err := pool.GetReadonly(name)
	require.NoError(t, err)
	defer pool.Release(name)
	count, err := n.DocCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIndexingPoolMarksCheckpointReached(t *testing.T) {
	pool, name := openTestPool(t)

	reg := checkpoint.NewRegistry()
	id := reg.Alloc()
	reg.Publish(id)

	group := queuegroup.New(10, 20, nil)
	job := &IndexingJob{Task: &task.CheckpointReachedTask{Checkpoints: reg, ID: id}, Checkpoints: reg}
	require.Equal(t, queuegroup.HasSpace, group.Push(name, job, false, time.Time{}))
	group.Close()

	p := IndexingPool(1, group, pool, 50*time.Millisecond)
	p.Wait()

	cp, ok := reg.Get(id)
	require.True(t, ok)
	require.Equal(t, checkpoint.StatusReached, cp.Status)
}
