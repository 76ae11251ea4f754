// Package task implements spec §4.9's three task shapes — read-only,
// processing, and indexing — plus the uniform perform() error wrapper that
// turns any failure into a checkpoint error entry and, where a result
// handle is attached, an HTTP-shaped error response.
//
// Grounded on cuemby-warren's pkg/scheduler task dispatch (one interface
// per unit of work, a recover-and-log wrapper around each run) generalised
// from container lifecycle operations onto this domain's three task kinds.
package task

import (
	"fmt"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/log"
	"github.com/cuemby/restpose/pkg/resulthandle"
	"github.com/cuemby/restpose/pkg/rperrors"
	"github.com/cuemby/restpose/pkg/schema"
)

// ReadOnlyTask takes an optional (possibly nil) read-only collection lease
// and produces its result into result, per spec §4.9.
type ReadOnlyTask interface {
	Perform(coll *collection.Collection, result *resulthandle.Handle) error
}

// ProcessingTask takes a read-only collection lease plus a back-reference
// to the task manager's enqueueing edge, so it can itself push indexing
// work.
type ProcessingTask interface {
	Perform(coll *collection.Collection, enqueuer Enqueuer) error
}

// IndexingTask takes a writable collection lease. Implementations must be
// clonable so a task manager can re-queue one (e.g. after a back-pressure
// deactivation cycle) without aliasing mutable state across attempts.
type IndexingTask interface {
	Perform(coll *collection.Collection) error
	Clone() IndexingTask
}

// PostPerformer is an optional hook a task implements for cleanup that must
// run whether Perform succeeded or not.
type PostPerformer interface {
	PostPerform()
}

// Enqueuer is the subset of the task manager a processing task uses to
// forward its output, kept as an interface here (rather than importing
// pkg/taskmanager directly) to avoid an import cycle: pkg/taskmanager
// depends on pkg/task, not the reverse.
type Enqueuer interface {
	// QueueIndexProcessedDoc pushes a freshly processed document onto
	// collName's indexing queue, implementing queue_index_processed_doc's
	// back-pressure edge (spec §4.12).
	QueueIndexProcessedDoc(collName string, doc *schema.Document, idterm string) error
	// QueueCheckpointReached forwards a checkpoint sentinel from the
	// processing queue into the indexing queue for collName, fencing
	// whatever preceded it on that key (spec §5 ordering guarantee 3).
	QueueCheckpointReached(collName string, checkpoints *checkpoint.Registry, id uint64) error
}

// Run executes fn, recovering a panic as an error, and on failure appends a
// checkpoint error entry (when checkpoints is non-nil) and, when result is
// non-nil and not already ready, writes an HTTP-shaped error response, per
// spec §4.9's uniform perform() wrapper and §7's error-kind → status
// mapping. docType/docID are attached to the checkpoint error entry if
// known; either may be empty.
func Run(checkpoints *checkpoint.Registry, docType, docID string, result *resulthandle.Handle, fn func() error) {
	err := runGuarded(fn)
	if err == nil {
		return
	}
	traceID := ""
	if checkpoints != nil {
		traceID = checkpoints.AppendError(err.Error(), docType, docID)
	}
	log.WithComponent("task").Error().Err(err).Str("trace_id", traceID).
		Str("doc_type", docType).Str("doc_id", docID).Msg("task failed")
	if result != nil && !result.IsReady() {
		result.SetResponse(ErrorResponse(err))
		result.SetReady()
	}
}

func runGuarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}

// ErrorResponse maps an error onto the HTTP-shaped status spec §7
// assigns its kind: InvalidValue → 400, OutOfMemory → 503,
// Unserialization/IndexBackend/System → 500, anything unrecognized → 500.
func ErrorResponse(err error) resulthandle.Response {
	status := 500
	switch {
	case rperrors.Is(err, rperrors.KindInvalidValue):
		status = 400
	case rperrors.Is(err, rperrors.KindOutOfMemory):
		status = 503
	}
	return resulthandle.Response{
		Status: status,
		Body:   map[string]interface{}{"error": err.Error()},
	}
}
