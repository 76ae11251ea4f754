package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/restpose/pkg/querybuilder"
	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/resulthandle"
)

// handleStatus serves GET /status: server-wide status, per spec §4.12's
// queue_get_status. The status payload itself is deliberately small —
// every open collection's name plus an "ok" marker — since spec.md leaves
// its exact shape to the external glue this package stands in for.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	nudge := newChanNudge()
	handle := resulthandle.New(nudge)
	res := s.tm.QueueGetStatus(handle, func() interface{} {
		return map[string]interface{}{
			"status":      "ok",
			"collections": s.pool.Names(),
		}
	})
	waitOrBackpressure(r, w, handle, nudge, s.ReadyTimeout, res)
}

// handleListCollections serves GET /coll.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	nudge := newChanNudge()
	handle := resulthandle.New(nudge)
	res := s.tm.QueueListCollections(handle, s.pool.Names)
	waitOrBackpressure(r, w, handle, nudge, s.ReadyTimeout, res)
}

// handleCreateCollection serves PUT /coll/{name}: "no-wait" per spec §6.1 —
// QueueCreateCollection itself runs synchronously (a pool lookup), so the
// handle is already ready by the time it returns.
func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	handle := resulthandle.New(nil)
	res := s.tm.QueueCreateCollection(name, handle)
	if res == queuegroup.Closed {
		status, body := backpressureStatus(res)
		writeJSON(w, status, body)
		return
	}
	resp := handle.Response()
	writeJSON(w, resp.Status, resp.Body)
}

// handleCollectionInfo serves GET /coll/{name}.
func (s *Server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	nudge := newChanNudge()
	handle := resulthandle.New(nudge)
	res := s.tm.QueueGetCollInfo(name, handle)
	waitOrBackpressure(r, w, handle, nudge, s.ReadyTimeout, res)
}

// handleGetDocument serves GET /coll/{name}/type/{type}/id/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	docType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")
	nudge := newChanNudge()
	handle := resulthandle.New(nudge)
	res := s.tm.QueueGetDocument(name, idTerm(docType, id), handle)
	waitOrBackpressure(r, w, handle, nudge, s.ReadyTimeout, res)
}

// handleIndexDocument serves PUT /coll/{name}/type/{type}/id/{id}: a
// "no-wait" route per spec §6.1. The URL's id segment is merged into the
// JSON body as the "id" field (creating or overwriting it) before the
// document is pushed onto the processing queue, since the processing
// pipeline (spec §4.4's schema.process) is what actually produces the
// document's idterm from the configured id field — the URL is just a
// convenient place for a REST client to supply it.
func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	docType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, 400, "failed to read request body")
		return
	}
	merged, err := mergeIDField(body, id)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	res := s.tm.QueueProcessDocument(name, docType, merged, true)
	status, respBody := backpressureStatus(res)
	writeJSON(w, status, respBody)
}

// mergeIDField decodes body as a JSON object and sets its "id" member to
// id, leaving every other field untouched. An empty body is treated as an
// empty object.
func mergeIDField(body []byte, id string) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, err
		}
	}
	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	obj["id"] = idJSON
	return json.Marshal(obj)
}

// handleDeleteDocument serves DELETE /coll/{name}/type/{type}/id/{id}: a
// "no-wait" route. Unlike PUT, a delete needs no schema processing — the
// idterm is fully determined by the URL — so it pushes straight onto the
// indexing queue.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	docType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")
	res := s.tm.QueueDeleteDocument(name, idTerm(docType, id), true)
	status, body := backpressureStatus(res)
	writeJSON(w, status, body)
}

// handleSearch serves GET|POST /coll/{name}/type/{type}/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	docType := chi.URLParam(r, "type")

	var body []byte
	var err error
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			q = `{"matchall":true}`
		}
		body, err = json.Marshal(searchGetParams(r, json.RawMessage(q)))
	} else {
		body, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeError(w, 400, "failed to read request body")
		return
	}

	req, err := querybuilder.ParseSearchRequest(body)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	nudge := newChanNudge()
	handle := resulthandle.New(nudge)
	res := s.tm.QueueSearch(name, docType, req, handle)
	waitOrBackpressure(r, w, handle, nudge, s.ReadyTimeout, res)
}

// searchGetParams builds the SearchRequest JSON object a GET search
// accepts as query-string parameters (from, size, checkatleast), falling
// back to ParseSearchRequest's own defaults for anything absent.
func searchGetParams(r *http.Request, query json.RawMessage) map[string]interface{} {
	out := map[string]interface{}{"query": query}
	if v := r.URL.Query().Get("from"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out["from"] = n
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out["size"] = n
		}
	}
	if v := r.URL.Query().Get("checkatleast"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out["checkatleast"] = n
		}
	}
	return out
}

// handleCheckpointPublish serves POST /coll/{name}/checkpoint: spec
// §4.12's alloc+publish is synchronous bookkeeping, but the fencing
// sentinel it threads through both queues is pushed the same as any other
// processing task, so back-pressure still applies to the push outcome.
func (s *Server) handleCheckpointPublish(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, res := s.tm.QueueCheckpointPublish(name)
	status, body := backpressureStatus(res)
	if status == 200 {
		body["id"] = id
	}
	writeJSON(w, status, body)
}

// handleCheckpointList serves GET /coll/{name}/checkpoint.
func (s *Server) handleCheckpointList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	nudge := newChanNudge()
	handle := resulthandle.New(nudge)
	res := s.tm.QueueCheckpointList(name, handle)
	waitOrBackpressure(r, w, handle, nudge, s.ReadyTimeout, res)
}

// handleCheckpointStatus serves GET /coll/{name}/checkpoint/{id}.
func (s *Server) handleCheckpointStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, 400, "invalid checkpoint id")
		return
	}
	nudge := newChanNudge()
	handle := resulthandle.New(nudge)
	res := s.tm.QueueCheckpointStatus(name, id, handle)
	waitOrBackpressure(r, w, handle, nudge, s.ReadyTimeout, res)
}
