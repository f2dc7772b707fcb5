package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Proxies drop idle streams; comment frames keep them open.
const sseKeepalive = 30 * time.Second

// handleJobEvents streams job lifecycle events as server-sent events. The
// first frame is always a jobs_state snapshot.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.jobs.Subscribe()
	defer s.jobs.Unsubscribe(ch)

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				// Dropped for falling behind; the client reconnects
				// and gets a fresh snapshot.
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
