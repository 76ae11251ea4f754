package taskmanager

import (
	"encoding/json"
	"time"

	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/task"
	"github.com/cuemby/restpose/pkg/workerpool"
)

// QueuePipeDocument pushes a pipe-document processing task, per
// queue_pipe_document(coll, pipe, json, allow_throttle, deadline).
func (m *Manager) QueuePipeDocument(collName, pipe string, value json.RawMessage, allowThrottle bool, deadline time.Time) queuegroup.PushResult {
	if m.isStopping() {
		return queuegroup.Closed
	}
	job := &workerpool.ProcessingJob{
		Task:        &task.PipeDocumentTask{CollName: collName, Pipe: pipe, Value: value},
		CollName:    collName,
		Checkpoints: m.checkpointsFor(collName),
	}
	return m.processing.Push(collName, job, allowThrottle, deadline)
}

// QueueProcessDocument pushes a process-document processing task, per
// queue_process_document(coll, type, json, allow_throttle).
func (m *Manager) QueueProcessDocument(collName, docType string, value json.RawMessage, allowThrottle bool) queuegroup.PushResult {
	if m.isStopping() {
		return queuegroup.Closed
	}
	job := &workerpool.ProcessingJob{
		Task:        &task.ProcessDocumentTask{CollName: collName, DocType: docType, Value: value},
		CollName:    collName,
		Checkpoints: m.checkpointsFor(collName),
	}
	return m.processing.Push(collName, job, allowThrottle, time.Time{})
}

// QueueCheckpointPublish allocates and immediately publishes a checkpoint
// for collName, then threads a sentinel through the processing and
// indexing queues so it correctly fences whatever preceded it on that
// collection, per spec §4.13's reached-with-empty-errors guarantee and
// §5 ordering guarantee 3. Returns the new checkpoint's id and the
// processing-queue push result.
func (m *Manager) QueueCheckpointPublish(collName string) (uint64, queuegroup.PushResult) {
	reg := m.checkpointsFor(collName)
	id := reg.Alloc()
	reg.Publish(id)

	if m.isStopping() {
		return id, queuegroup.Closed
	}
	job := &workerpool.ProcessingJob{
		Task:        &task.CheckpointPropagateTask{CollName: collName, Checkpoints: reg, ID: id},
		CollName:    collName,
		Checkpoints: reg,
	}
	res := m.processing.Push(collName, job, false, time.Time{})
	return id, res
}
