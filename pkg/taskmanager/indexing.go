package taskmanager

import (
	"time"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/schema"
	"github.com/cuemby/restpose/pkg/task"
	"github.com/cuemby/restpose/pkg/workerpool"
)

func indexingClosedErr() error {
	return rperrors.New(rperrors.KindSystem, "indexing queue closed")
}

// QueueIndexDocument pushes an index-document indexing task, per
// queue_index_document(coll, doc, idterm, allow_throttle).
func (m *Manager) QueueIndexDocument(collName string, doc *schema.Document, idterm string, allowThrottle bool) queuegroup.PushResult {
	if m.isStopping() {
		return queuegroup.Closed
	}
	job := &workerpool.IndexingJob{
		Task:        &task.IndexDocumentTask{IDTerm: idterm, Doc: doc},
		DocID:       idterm,
		Checkpoints: m.checkpointsFor(collName),
	}
	return m.indexing.Push(collName, job, allowThrottle, time.Time{})
}

// QueueDeleteDocument pushes a delete-document indexing task, per
// queue_delete_document(coll, idterm, allow_throttle).
func (m *Manager) QueueDeleteDocument(collName, idterm string, allowThrottle bool) queuegroup.PushResult {
	if m.isStopping() {
		return queuegroup.Closed
	}
	job := &workerpool.IndexingJob{
		Task:        &task.DeleteDocumentTask{IDTerm: idterm},
		DocID:       idterm,
		Checkpoints: m.checkpointsFor(collName),
	}
	return m.indexing.Push(collName, job, allowThrottle, time.Time{})
}

// QueueCommit pushes a commit indexing task, per
// queue_commit(coll, allow_throttle).
func (m *Manager) QueueCommit(collName string, allowThrottle bool) queuegroup.PushResult {
	if m.isStopping() {
		return queuegroup.Closed
	}
	job := &workerpool.IndexingJob{
		Task:        &task.CommitTask{},
		Checkpoints: m.checkpointsFor(collName),
	}
	return m.indexing.Push(collName, job, allowThrottle, time.Time{})
}

// indexBackpressureWait bounds how long queue_index_processed_doc's Full
// branch blocks waiting for indexing queue space to free, per spec
// §4.12's "waits on the condition" — queuegroup.Push(deadline) already
// blocks on the group's own condition variable, so this is simply a long
// enough deadline that a processing worker does not wait forever behind a
// stalled indexing pool.
const indexBackpressureWait = 30 * time.Second

// QueueIndexProcessedDoc is spec §4.12's back-pressure edge, called from a
// processing worker once it has a freshly processed document ready to
// index. It tries to push onto collName's indexing queue; on LowSpace it
// deactivates the processing queue for collName and returns success (the
// push itself succeeded, just at the throttle watermark); on Full it
// deactivates the processing queue and blocks on the indexing queue's own
// condition via Push's deadline form, reactivating the processing queue
// once the push finally lands.
//
// Reactivation after a LowSpace deactivation happens opportunistically, on
// this same call's next successful push for collName, rather than via a
// dedicated watcher: queuegroup's Nudge is a group-wide, keyless wakeup,
// so it cannot by itself say "collName's indexing queue has space again"
// to the processing side. Spec §4.12 does not specify what re-activates a
// LowSpace-deactivated processing queue beyond the condition variable
// wakeup Full already models, so this is a judgment call, not an omission.
func (m *Manager) QueueIndexProcessedDoc(collName string, doc *schema.Document, idterm string) error {
	job := &workerpool.IndexingJob{
		Task:        &task.IndexDocumentTask{IDTerm: idterm, Doc: doc},
		DocID:       idterm,
		Checkpoints: m.checkpointsFor(collName),
	}

	res := m.indexing.Push(collName, job, true, time.Time{})
	switch res {
	case queuegroup.Closed:
		return indexingClosedErr()
	case queuegroup.LowSpace:
		m.processing.SetActive(collName, false)
		return nil
	case queuegroup.Full:
		m.processing.SetActive(collName, false)
		res = m.indexing.Push(collName, job, true, time.Now().Add(indexBackpressureWait))
		if res == queuegroup.Closed {
			return indexingClosedErr()
		}
	}
	m.processing.SetActive(collName, true)
	return nil
}

// QueueCheckpointReached forwards a checkpoint sentinel from the
// processing queue into the indexing queue for collName, fencing whatever
// preceded it on that key, per spec §5 ordering guarantee 3.
func (m *Manager) QueueCheckpointReached(collName string, checkpoints *checkpoint.Registry, id uint64) error {
	job := &workerpool.IndexingJob{
		Task:        &task.CheckpointReachedTask{Checkpoints: checkpoints, ID: id},
		Checkpoints: checkpoints,
	}
	res := m.indexing.Push(collName, job, false, time.Now().Add(indexBackpressureWait))
	if res == queuegroup.Closed {
		return indexingClosedErr()
	}
	return nil
}
