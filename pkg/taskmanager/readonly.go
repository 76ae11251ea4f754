package taskmanager

import (
	"time"

	"github.com/cuemby/restpose/pkg/querybuilder"
	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/resulthandle"
	"github.com/cuemby/restpose/pkg/task"
	"github.com/cuemby/restpose/pkg/workerpool"
)

// pushReadOnly pushes t onto the search queue group under collName (may be
// empty, for collection-less tasks like server status or the collection
// list), without throttling, per spec §4.12.
func (m *Manager) pushReadOnly(collName string, t task.ReadOnlyTask, result *resulthandle.Handle) queuegroup.PushResult {
	if m.isStopping() {
		return queuegroup.Closed
	}
	job := &workerpool.ReadOnlyJob{
		Task:        t,
		CollName:    collName,
		Checkpoints: m.checkpointsFor(collName),
		Result:      result,
	}
	return m.search.Push(collName, job, false, time.Time{})
}

// QueueReadOnly pushes an arbitrary read-only task against collName, per
// queue_readonly.
func (m *Manager) QueueReadOnly(collName string, t task.ReadOnlyTask, result *resulthandle.Handle) queuegroup.PushResult {
	return m.pushReadOnly(collName, t, result)
}

// QueueGetStatus pushes server-status reporting, per queue_get_status.
// statusFn is evaluated on the search pool, not the caller's goroutine, so
// it must be safe to call from any worker.
func (m *Manager) QueueGetStatus(result *resulthandle.Handle, statusFn func() interface{}) queuegroup.PushResult {
	return m.pushReadOnly("", &task.ServerStatusTask{Status: statusFn}, result)
}

// QueueGetCollInfo pushes collection-info reporting, per
// queue_get_collinfo.
func (m *Manager) QueueGetCollInfo(name string, result *resulthandle.Handle) queuegroup.PushResult {
	return m.pushReadOnly(name, &task.CollectionInfoTask{}, result)
}

// QueueListCollections pushes the collection-list task, per `GET /coll`.
func (m *Manager) QueueListCollections(result *resulthandle.Handle, namesFn func() []string) queuegroup.PushResult {
	return m.pushReadOnly("", &task.ListCollectionsTask{Names: namesFn}, result)
}

// QueueCreateCollection opens (creating if absent) name via the
// collection pool and reports success, per `PUT /coll/{name}` ("no-wait").
// This is genuinely synchronous rather than queued: the route's own
// contract is "no-wait", and opening a collection is a cheap map lookup
// after its first reference, so there is no pipeline stage worth pushing
// onto for it.
func (m *Manager) QueueCreateCollection(name string, result *resulthandle.Handle) queuegroup.PushResult {
	if m.isStopping() {
		return queuegroup.Closed
	}
	if _, err := m.pool.GetReadonly(name); err != nil {
		result.SetResponse(task.ErrorResponse(err))
		result.SetReady()
		return queuegroup.HasSpace
	}
	m.pool.Release(name)
	result.SetResponse(resulthandle.Response{Status: 200, Body: map[string]interface{}{"ok": 1}})
	result.SetReady()
	return queuegroup.HasSpace
}

// QueueSearch pushes a search task for docType against name's collection,
// per queue_search.
func (m *Manager) QueueSearch(name, docType string, req *querybuilder.SearchRequest, result *resulthandle.Handle) queuegroup.PushResult {
	return m.pushReadOnly(name, &task.SearchTask{DocType: docType, Request: req}, result)
}

// QueueGetDocument pushes a single-document read, per
// `GET /coll/{name}/type/{type}/id/{id}`.
func (m *Manager) QueueGetDocument(name, idterm string, result *resulthandle.Handle) queuegroup.PushResult {
	return m.pushReadOnly(name, &task.GetDocumentTask{IDTerm: idterm}, result)
}

// QueueCheckpointList pushes a checkpoint-list read, per
// `GET /coll/{name}/checkpoint`.
func (m *Manager) QueueCheckpointList(name string, result *resulthandle.Handle) queuegroup.PushResult {
	return m.pushReadOnly(name, &task.CheckpointListTask{Checkpoints: m.checkpointsFor(name)}, result)
}

// QueueCheckpointStatus pushes a single-checkpoint-status read, per
// `GET /coll/{name}/checkpoint/{id}`.
func (m *Manager) QueueCheckpointStatus(name string, id uint64, result *resulthandle.Handle) queuegroup.PushResult {
	return m.pushReadOnly(name, &task.CheckpointStatusTask{Checkpoints: m.checkpointsFor(name), ID: id}, result)
}
