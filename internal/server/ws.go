package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chanplan/internal/models"
)

const (
	wsWriteWait = 10 * time.Second
	wsPingEvery = 25 * time.Second
	// Pongs and command frames both count as liveness. The peer has two
	// ping intervals to answer before the read side gives up.
	wsPongWait  = 60 * time.Second
	wsReadLimit = 1024
)

// wsCommand is a frame sent by the peer.
type wsCommand struct {
	Type  string `json:"type"`
	JobID string `json:"jobId,omitempty"`
}

// handleJobsWS serves the jobs feed over a websocket. Event frames mirror
// the SSE stream; the peer may additionally send ping, cancel_job, and
// get_jobs commands.
func (s *Server) handleJobsWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return s.originAllowed(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}

	events := s.jobs.Subscribe()
	defer s.jobs.Unsubscribe(events)

	out := make(chan []byte, 8)
	done := make(chan struct{})
	go s.wsRead(conn, out, done)
	s.wsWrite(conn, events, out, done)
}

// originAllowed mirrors the CORS policy for websocket upgrades. Browsers
// enforce CORS for SSE and XHR themselves but not for websockets.
func (s *Server) originAllowed(r *http.Request) bool {
	if s.corsOrigin == "" || s.corsOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.corsOrigin
}

// wsRead consumes peer frames until the connection drops, then closes
// done. It is the only sender on out.
func (s *Server) wsRead(conn *websocket.Conn, out chan<- []byte, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var cmd wsCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		switch cmd.Type {
		case "ping":
			enqueueFrame(out, []byte(`{"type":"pong"}`))
		case "cancel_job":
			if s.jobs.Cancel(cmd.JobID) {
				s.recordJob(cmd.JobID)
			}
		case "get_jobs":
			ev := models.Event{Type: models.EventJobsState, Jobs: s.jobs.ListRecent(0)}
			if data, err := json.Marshal(ev); err == nil {
				enqueueFrame(out, data)
			}
		}
	}
}

// enqueueFrame drops the reply when the writer is saturated. Command
// replies are advisory; the event stream does not pass through here.
func enqueueFrame(out chan<- []byte, data []byte) {
	select {
	case out <- data:
	default:
	}
}

// wsWrite owns all writes on the connection. It returns when the read
// side closes done or any write fails, closing the connection either way.
func (s *Server) wsWrite(conn *websocket.Conn, events <-chan models.Event, out <-chan []byte, done <-chan struct{}) {
	defer conn.Close()

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	write := func(data []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				// The coordinator dropped this subscriber for falling
				// behind. Say so instead of silently vanishing.
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "event buffer overflow"))
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := write(data); err != nil {
				return
			}
		case data := <-out:
			if err := write(data); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
