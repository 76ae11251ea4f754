// Package checkpoint implements spec §4.13's per-collection checkpoint
// registry: an allocate/publish/reach/error lifecycle a client can poll to
// learn that every document it pushed before the checkpoint has committed.
// Grounded on cuemby-warren's pkg/worker health-monitor status map
// (name-keyed state behind a single mutex, status snapshotted by value on
// read) generalised from container health states onto checkpoint states.
// Each recorded Error carries a google/uuid trace id, the teacher's own
// choice for correlating a client-visible failure with the log line a
// worker emitted for it.
package checkpoint

import (
	"sync"

	"github.com/google/uuid"
)

// Status is a checkpoint's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPublished Status = "published"
	StatusReached  Status = "reached"
)

// Error records one failure observed while a checkpoint was still in
// flight (published but not yet reached). TraceID correlates this entry
// with the structured log record the failing task emitted, since the
// checkpoint error and the log line are the only two places a client's
// failure surfaces.
type Error struct {
	Msg     string `json:"msg"`
	DocType string `json:"doc_type,omitempty"`
	DocID   string `json:"doc_id,omitempty"`
	TraceID string `json:"trace_id"`
}

// Checkpoint is one barrier's state, as reported to clients.
type Checkpoint struct {
	ID     uint64  `json:"id"`
	Status Status  `json:"status"`
	Errors []Error `json:"errors"`
}

// Registry holds every checkpoint for one collection.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	order   []uint64
	byID    map[uint64]*Checkpoint
}

// NewRegistry returns an empty checkpoint registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]*Checkpoint)}
}

// Alloc assigns a new checkpoint id in the pending state, per
// alloc_checkpoint.
func (r *Registry) Alloc() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.byID[id] = &Checkpoint{ID: id, Status: StatusPending}
	r.order = append(r.order, id)
	return id
}

// Publish makes a checkpoint visible to readers, per publish_checkpoint.
// It is a no-op if id is unknown or already published/reached.
func (r *Registry) Publish(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cp, ok := r.byID[id]; ok && cp.Status == StatusPending {
		cp.Status = StatusPublished
	}
}

// MarkReached transitions a published checkpoint to reached, per
// mark_reached, called when the indexing task sentinel is popped.
func (r *Registry) MarkReached(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cp, ok := r.byID[id]; ok {
		cp.Status = StatusReached
	}
}

// AppendError records an error against every checkpoint that is published
// but not yet reached, per append_error: those checkpoints have not yet
// fenced this failure, so it belongs to all of them. It returns the
// trace id stamped onto the recorded entries, so the caller can log the
// same id alongside the full error.
func (r *Registry) AppendError(msg, docType, docID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	traceID := uuid.NewString()
	e := Error{Msg: msg, DocType: docType, DocID: docID, TraceID: traceID}
	for _, id := range r.order {
		cp := r.byID[id]
		if cp.Status == StatusPublished {
			cp.Errors = append(cp.Errors, e)
		}
	}
	return traceID
}

// Get returns a copy of one checkpoint's current state, or ok=false if
// unknown.
func (r *Registry) Get(id uint64) (Checkpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp, ok := r.byID[id]
	if !ok {
		return Checkpoint{}, false
	}
	return cloneCheckpoint(cp), true
}

// GetAll returns a snapshot of every checkpoint, in allocation order.
func (r *Registry) GetAll() []Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Checkpoint, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneCheckpoint(r.byID[id]))
	}
	return out
}

func cloneCheckpoint(cp *Checkpoint) Checkpoint {
	out := Checkpoint{ID: cp.ID, Status: cp.Status}
	if len(cp.Errors) > 0 {
		out.Errors = append([]Error{}, cp.Errors...)
	}
	return out
}
