// Package transport is the thin HTTP-shaped contract stub of spec §6.1: it
// exercises the core's §4.12 task manager façade through the same
// (method, path, json body) → ResultHandle shape the out-of-scope real
// transport uses, without itself doing any indexing work. Grounded on
// cuemby-warren's pkg/api server (one struct wrapping a manager handle,
// one handler per route) and on the chi router idiom other pack repos use
// for their own HTTP surfaces (none of cuemby-warren's own transport is
// HTTP — it's gRPC — so the router shape here is learned from the rest of
// the corpus, not the teacher).
package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/log"
	"github.com/cuemby/restpose/pkg/taskmanager"
)

// Server wires HTTP routes onto a taskmanager.Manager. It never blocks a
// request goroutine on task execution beyond waitReady's own bound: per
// spec §6.1, "the core never blocks the transport thread — it pushes a
// task and returns"; waitReady here plays the role the real transport's
// event loop / nudge-pipe select would, folded into one goroutine since
// net/http already gives each request its own.
type Server struct {
	tm   *taskmanager.Manager
	pool *collection.Pool

	// ReadyTimeout bounds how long a request waits for its ResultHandle to
	// become ready before responding 504. Zero means DefaultReadyTimeout.
	ReadyTimeout time.Duration
}

// DefaultReadyTimeout is used when Server.ReadyTimeout is zero.
const DefaultReadyTimeout = 30 * time.Second

// New returns a Server dispatching onto tm, whose collections are leased
// from pool (used directly only by the synchronous collection-list/create
// routes; every other route goes through tm).
func New(tm *taskmanager.Manager, pool *collection.Pool) *Server {
	return &Server{tm: tm, pool: pool}
}

// Router builds the chi.Mux implementing spec §6.1's route table.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/status", s.handleStatus)

	r.Get("/coll", s.handleListCollections)
	r.Route("/coll/{name}", func(r chi.Router) {
		r.Put("/", s.handleCreateCollection)
		r.Get("/", s.handleCollectionInfo)

		r.Post("/checkpoint", s.handleCheckpointPublish)
		r.Get("/checkpoint", s.handleCheckpointList)
		r.Get("/checkpoint/{id}", s.handleCheckpointStatus)

		r.Route("/type/{type}", func(r chi.Router) {
			r.Get("/id/{id}", s.handleGetDocument)
			r.Put("/id/{id}", s.handleIndexDocument)
			r.Delete("/id/{id}", s.handleDeleteDocument)
			r.Get("/search", s.handleSearch)
			r.Post("/search", s.handleSearch)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithComponent("transport").Error().Err(err).Msg("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}

// idTerm builds spec's idterm convention, "\t<type>\t<id>", for the
// single-document GET/PUT/DELETE routes which address a document directly
// by URL segments instead of by a schema-processed id field.
func idTerm(docType, id string) string {
	return "\t" + docType + "\t" + id
}
