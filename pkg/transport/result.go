package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/resulthandle"
)

// waitOrBackpressure is the common path for search-queue reads: if the
// push landed (HasSpace/LowSpace), wait for the result; otherwise the push
// itself failed (Full/Closed) and there is no handle worth waiting on.
func waitOrBackpressure(r *http.Request, w http.ResponseWriter, handle *resulthandle.Handle, nudge chanNudge, timeout time.Duration, res queuegroup.PushResult) {
	switch res {
	case queuegroup.HasSpace, queuegroup.LowSpace:
		waitReady(r.Context(), w, handle, nudge, timeout)
	default:
		status, body := backpressureStatus(res)
		writeJSON(w, status, body)
	}
}

// chanNudge implements resulthandle.Nudge with a buffered channel standing
// in for spec §4.15's nudge file descriptor: "exactly one byte written per
// ready transition, at most once per handle" maps directly onto a
// buffered-1 channel send that never blocks the producer.
type chanNudge chan struct{}

func newChanNudge() chanNudge {
	return make(chanNudge, 1)
}

func (c chanNudge) Write() error {
	select {
	case c <- struct{}{}:
	default:
	}
	return nil
}

// waitReady blocks until handle is ready, ctx is done, or timeout elapses,
// then writes the HTTP-shaped response, the transport side of spec §6.1's
// "poll ResultHandle::is_ready ... or sleep on select over the nudge pipe".
func waitReady(ctx context.Context, w http.ResponseWriter, handle *resulthandle.Handle, nudge chanNudge, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	if handle.IsReady() {
		resp := handle.Response()
		writeJSON(w, resp.Status, resp.Body)
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-nudge:
		resp := handle.Response()
		writeJSON(w, resp.Status, resp.Body)
	case <-ctx.Done():
		writeError(w, 504, "request cancelled before result became ready")
	case <-timer.C:
		writeError(w, 504, "timed out waiting for result")
	}
}

// backpressureStatus maps a queue push result onto the HTTP status/body
// spec §6.1's back-pressure table assigns it, for the "no-wait" routes
// that don't themselves wait on a ResultHandle.
func backpressureStatus(res queuegroup.PushResult) (int, map[string]interface{}) {
	switch res {
	case queuegroup.Full:
		return 503, map[string]interface{}{"error": "queue full"}
	case queuegroup.Closed:
		return 500, map[string]interface{}{"error": "server is shutting down"}
	case queuegroup.LowSpace:
		return 200, map[string]interface{}{"ok": 1, "busy": 1}
	default: // HasSpace
		return 200, map[string]interface{}{"ok": 1}
	}
}
