package task

import (
	"encoding/json"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
)

// ProcessDocumentTask runs schema-driven processing over a raw document,
// per process_doc(type, jsonval, &idterm), then hands the resulting
// document to the task manager's back-pressure edge for indexing.
type ProcessDocumentTask struct {
	CollName string
	DocType  string
	Value    json.RawMessage
}

func (t *ProcessDocumentTask) Perform(coll *collection.Collection, enq Enqueuer) error {
	doc, err := coll.ProcessDoc(t.DocType, t.Value)
	if err != nil {
		return err
	}
	return enq.QueueIndexProcessedDoc(t.CollName, doc, doc.IDTerm)
}

// PipeDocumentTask is queue_pipe_document's processing task: it resolves a
// named pipe to its configured document type before processing, per
// send_to_pipe(taskman, pipe_name, jsonval).
type PipeDocumentTask struct {
	CollName string
	Pipe     string
	Value    json.RawMessage
}

func (t *PipeDocumentTask) Perform(coll *collection.Collection, enq Enqueuer) error {
	doc, err := coll.SendToPipe(t.Pipe, t.Value)
	if err != nil {
		return err
	}
	return enq.QueueIndexProcessedDoc(t.CollName, doc, doc.IDTerm)
}

// CheckpointPropagateTask forwards a checkpoint sentinel from the
// processing queue into the indexing queue, per spec §5 ordering guarantee
// 3: pushing it through both queues in FIFO order fences everything pushed
// on the same key before it.
type CheckpointPropagateTask struct {
	CollName    string
	Checkpoints *checkpoint.Registry
	ID          uint64
}

func (t *CheckpointPropagateTask) Perform(coll *collection.Collection, enq Enqueuer) error {
	return enq.QueueCheckpointReached(t.CollName, t.Checkpoints, t.ID)
}
