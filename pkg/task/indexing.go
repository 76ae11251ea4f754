package task

import (
	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/schema"
)

// IndexDocumentTask upserts one already-processed document, per
// raw_update_doc(idterm, doc) → replace_document.
type IndexDocumentTask struct {
	IDTerm string
	Doc    *schema.Document
}

func (t *IndexDocumentTask) Perform(coll *collection.Collection) error {
	return coll.RawUpdateDoc(t.IDTerm, t.Doc)
}

func (t *IndexDocumentTask) Clone() IndexingTask {
	cp := *t
	return &cp
}

// DeleteDocumentTask removes one document, per
// raw_delete_doc(idterm) → delete_document.
type DeleteDocumentTask struct {
	IDTerm string
}

func (t *DeleteDocumentTask) Perform(coll *collection.Collection) error {
	return coll.RawDeleteDoc(t.IDTerm)
}

func (t *DeleteDocumentTask) Clone() IndexingTask {
	cp := *t
	return &cp
}

// CommitTask durably applies every pending write on the collection it is
// popped against, per commit.
type CommitTask struct{}

func (t *CommitTask) Perform(coll *collection.Collection) error {
	return coll.Commit()
}

func (t *CommitTask) Clone() IndexingTask {
	return &CommitTask{}
}

// SetPipeTask installs a named pipe's document-type mapping, the indexing
// side of collection configuration changes (alongside schema/taxonomy
// updates, which travel as ordinary processed documents through
// Schema.MergeFrom at the point they're applied).
type SetPipeTask struct {
	Pipe    string
	DocType string
}

func (t *SetPipeTask) Perform(coll *collection.Collection) error {
	coll.SetPipe(t.Pipe, t.DocType)
	return nil
}

func (t *SetPipeTask) Clone() IndexingTask {
	cp := *t
	return &cp
}

// CheckpointReachedTask marks a checkpoint reached when the indexing
// worker handling its collection pops it, per mark_reached. Per spec §5
// ordering guarantee 3, this only fences work correctly because it is
// pushed onto the same collection's indexing queue as a sentinel, after
// everything that must precede the checkpoint.
type CheckpointReachedTask struct {
	Checkpoints *checkpoint.Registry
	ID          uint64
}

func (t *CheckpointReachedTask) Perform(coll *collection.Collection) error {
	t.Checkpoints.MarkReached(t.ID)
	return nil
}

func (t *CheckpointReachedTask) Clone() IndexingTask {
	cp := *t
	return &cp
}
