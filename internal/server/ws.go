package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// snapshotInterval is how often instance state is pushed to connected
// browsers.
const snapshotInterval = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API and the page are served from the same origin in
	// production; local tooling connects from anywhere.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket streams instance snapshots to the browser until the
// client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	// Drain client frames so close/ping handling works.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			payload := map[string]any{"instances": s.orch.Instances()}
			if err := conn.WriteJSON(payload); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
