package taskmanager

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/resulthandle"
	"github.com/cuemby/restpose/pkg/schema"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
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

	cfg := DefaultConfig()
	cfg.SearchWorkers = 1
	cfg.ProcessingWorkers = 1
	cfg.IndexingWorkers = 1
	cfg.IdleCommitTimeout = 50 * time.Millisecond

	m := New(pool, cfg)
	m.Start()
	return m
}

func TestQueueProcessDocumentEndToEndIndexesViaBackpressureEdge(t *testing.T) {
	m := newTestManager(t)

	res := m.QueueProcessDocument("widgets", "widget", json.RawMessage(`{"id":"w1","colour":"red"}`), false)
	require.Equal(t, queuegroup.HasSpace, res)

	commitRes := m.QueueCommit("widgets", false)
	require.Equal(t, queuegroup.HasSpace, commitRes)

	require.Eventually(t, func() bool {
		c, err := m.pool.GetReadonly("widgets")
		if err != nil {
			return false
		}
		defer m.pool.Release("widgets")
		n, err := c.DocCount()
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Join()
}

func TestQueueSearchReturnsResultsThroughSearchPool(t *testing.T) {
	m := newTestManager(t)

	require.Equal(t, queuegroup.HasSpace, m.QueueProcessDocument("widgets", "widget", json.RawMessage(`{"id":"w1","colour":"red"}`), false))
	require.Equal(t, queuegroup.HasSpace, m.QueueCommit("widgets", false))

	require.Eventually(t, func() bool {
		c, err := m.pool.GetReadonly("widgets")
		if err != nil {
			return false
		}
		defer m.pool.Release("widgets")
		n, _ := c.DocCount()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	result := resulthandle.New(nil)
	res := m.QueueGetCollInfo("widgets", result)
	require.Equal(t, queuegroup.HasSpace, res)

	require.Eventually(t, result.IsReady, time.Second, 5*time.Millisecond)
	require.Equal(t, 200, result.Response().Status)

	m.Stop()
	m.Join()
}

func TestCheckpointPublishReachesAfterIndexing(t *testing.T) {
	m := newTestManager(t)

	require.Equal(t, queuegroup.HasSpace, m.QueueProcessDocument("widgets", "widget", json.RawMessage(`{"id":"w1","colour":"red"}`), false))

	id, res := m.QueueCheckpointPublish("widgets")
	require.Equal(t, queuegroup.HasSpace, res)

	require.Eventually(t, func() bool {
		cp, ok := m.checkpointsFor("widgets").Get(id)
		return ok && cp.Status == checkpoint.StatusReached
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Join()
}

func TestStopRejectsNewProcessingPushes(t *testing.T) {
	m := newTestManager(t)
	m.Stop()
	m.Join()

	res := m.QueueProcessDocument("widgets", "widget", json.RawMessage(`{"id":"w2","colour":"blue"}`), false)
	require.Equal(t, queuegroup.Closed, res)
}
