package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/schema"
	"github.com/cuemby/restpose/pkg/taskmanager"
)

func newTestServer(t *testing.T) (*Server, *taskmanager.Manager) {
	t.Helper()
	dir := t.TempDir()
	pool := collection.NewPool(dir)

	coll, err := pool.GetReadonly("widgets")
	require.NoError(t, err)
	s := coll.SchemaFor("widget")
	s.Set("id", &schema.IDConfig{DocType: "widget", StoreField: "id"})
	s.Set("colour", &schema.ExactConfig{Prefix: "XCOLOUR", WDFInc: 1, StoreField: "colour"})
	pool.Release("widgets")

	cfg := taskmanager.DefaultConfig()
	cfg.IdleCommitTimeout = 50 * time.Millisecond
	tm := taskmanager.New(pool, cfg)
	tm.Start()
	t.Cleanup(func() {
		tm.Stop()
		tm.Join()
		_ = pool.Close()
	})

	srv := New(tm, pool)
	srv.ReadyTimeout = 5 * time.Second
	return srv, tm
}

func TestCreateAndListCollections(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPut, "/coll/extra", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/coll", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	var names []string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&names))
	require.Contains(t, names, "extra")
	require.Contains(t, names, "widgets")
}

func TestIndexSearchAndGetDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	body := []byte(`{"colour":"red"}`)
	req := httptest.NewRequest(http.MethodPut, "/coll/widgets/type/widget/id/w1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	// Checkpoint to know when the document has committed.
	req = httptest.NewRequest(http.MethodPost, "/coll/widgets/checkpoint", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
	var cpResp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cpResp))
	id := uint64(cpResp["id"].(float64))

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, checkpointPath(id), nil)
		router.ServeHTTP(w, req)
		if w.Code != 200 {
			return false
		}
		var status map[string]interface{}
		_ = json.NewDecoder(w.Body).Decode(&status)
		return status["status"] == "reached"
	}, 2*time.Second, 10*time.Millisecond)

	req = httptest.NewRequest(http.MethodGet, "/coll/widgets/type/widget/id/w1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
	var doc map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	var colour string
	require.NoError(t, json.Unmarshal(doc["colour"], &colour))
	require.Equal(t, "red", colour)

	req = httptest.NewRequest(http.MethodGet, `/coll/widgets/type/widget/search?query={"field":["colour","is",["red"]]}`, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
	var search map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&search))
	require.EqualValues(t, 1, search["matches_estimated"])
}

func TestDeleteDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodDelete, "/coll/widgets/type/widget/id/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
}

func checkpointPath(id uint64) string {
	return "/coll/widgets/checkpoint/" + strconv.FormatUint(id, 10)
}
