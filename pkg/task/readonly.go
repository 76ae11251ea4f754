package task

import (
	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/querybuilder"
	"github.com/cuemby/restpose/pkg/resulthandle"
)

// SearchTask executes a search request against docType's schema (or the
// whole collection when docType is empty) and writes the response into
// result, per perform_search.
type SearchTask struct {
	DocType string
	Request *querybuilder.SearchRequest
}

func (t *SearchTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	resp, err := coll.PerformSearch(t.DocType, t.Request)
	if err != nil {
		return err
	}
	result.SetResponse(resulthandle.Response{Status: 200, Body: resp})
	result.SetReady()
	return nil
}

// GetDocumentTask reads one document's stored field data by idterm, per
// `GET /coll/{name}/type/{type}/id/{id}`.
type GetDocumentTask struct {
	IDTerm string
}

func (t *GetDocumentTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	data, err := coll.GetDocument(t.IDTerm)
	if err != nil {
		return err
	}
	if data == nil {
		result.SetResponse(resulthandle.Response{
			Status: 404,
			Body:   map[string]interface{}{"error": "document not found"},
		})
		result.SetReady()
		return nil
	}
	result.SetResponse(resulthandle.Response{Status: 200, Body: data})
	result.SetReady()
	return nil
}

// CollectionInfoTask reports a collection's document count, per
// `GET /coll/{name}`.
type CollectionInfoTask struct{}

func (t *CollectionInfoTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	n, err := coll.DocCount()
	if err != nil {
		return err
	}
	result.SetResponse(resulthandle.Response{
		Status: 200,
		Body:   map[string]interface{}{"name": coll.Name, "doc_count": n},
	})
	result.SetReady()
	return nil
}

// CheckpointListTask reports every checkpoint allocated for a collection,
// per `GET /coll/{name}/checkpoint`.
type CheckpointListTask struct {
	Checkpoints *checkpoint.Registry
}

func (t *CheckpointListTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	result.SetResponse(resulthandle.Response{Status: 200, Body: t.Checkpoints.GetAll()})
	result.SetReady()
	return nil
}

// CheckpointStatusTask reports one checkpoint's status, per
// `GET /coll/{name}/checkpoint/{id}`.
type CheckpointStatusTask struct {
	Checkpoints *checkpoint.Registry
	ID          uint64
}

func (t *CheckpointStatusTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	cp, ok := t.Checkpoints.Get(t.ID)
	if !ok {
		result.SetResponse(resulthandle.Response{
			Status: 404,
			Body:   map[string]interface{}{"error": "unknown checkpoint"},
		})
		result.SetReady()
		return nil
	}
	result.SetResponse(resulthandle.Response{Status: 200, Body: cp})
	result.SetReady()
	return nil
}

// ServerStatusTask reports server-wide status, per `GET /status`. It takes
// no collection; Status is supplied by the task manager, the only thing
// that knows every open collection's name and pool depth.
type ServerStatusTask struct {
	Status func() interface{}
}

func (t *ServerStatusTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	result.SetResponse(resulthandle.Response{Status: 200, Body: t.Status()})
	result.SetReady()
	return nil
}

// ListCollectionsTask reports every known collection name, per
// `GET /coll`.
type ListCollectionsTask struct {
	Names func() []string
}

func (t *ListCollectionsTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	result.SetResponse(resulthandle.Response{Status: 200, Body: t.Names()})
	result.SetReady()
	return nil
}

// CreateCollectionTask opens (creating, if absent) a collection, per
// `PUT /coll/{name}`. The actual open happens through the task manager's
// pool before this task is even constructed; this task only reports
// success, matching the route's "no-wait" contract.
type CreateCollectionTask struct{}

func (t *CreateCollectionTask) Perform(coll *collection.Collection, result *resulthandle.Handle) error {
	result.SetResponse(resulthandle.Response{Status: 200, Body: map[string]interface{}{"ok": 1}})
	result.SetReady()
	return nil
}
